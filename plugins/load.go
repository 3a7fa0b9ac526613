package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/pkg/errors"

	"github.com/ephysio/kwikstore/utils/log"
)

// PluginDirEnv lists extra directories, separated by ':', searched for
// relative module names before $GOPATH/bin.
const PluginDirEnv = "KWIKSTORE_PLUGIN_DIR"

type SymbolLoader struct {
	module *plugin.Plugin
}

// NewSymbolLoader creates a SymbolLoader that loads symbols from a particular
// module. moduleName can be an absolute path, or a file name resolved by Load.
func NewSymbolLoader(moduleName string) (*SymbolLoader, error) {
	pi, err := Load(moduleName)
	if err != nil {
		return nil, err
	}
	return &SymbolLoader{
		module: pi,
	}, nil
}

// LoadSymbol looks up a symbol from the module. A plugin cannot import this
// package, so it exports plain functions whose signatures callers assert.
func (l *SymbolLoader) LoadSymbol(symbolName string) (interface{}, error) {
	return l.module.Lookup(symbolName)
}

// searchPaths returns the candidate locations of a relative module name in
// lookup order.
func searchPaths(pluginName string) []string {
	var dirs []string
	for _, dir := range strings.Split(os.Getenv(PluginDirEnv), ":") {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	for _, path := range strings.Split(os.Getenv("GOPATH"), ":") {
		if path != "" {
			dirs = append(dirs, filepath.Join(path, "bin"))
		}
	}
	dirs = append(dirs, ".")

	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		paths = append(paths, filepath.Join(dir, pluginName))
	}
	return paths
}

// Load opens a plugin module. An absolute path is opened as is; a relative
// name is tried in $KWIKSTORE_PLUGIN_DIR, then under bin of every $GOPATH
// entry, then in the current directory.
func Load(pluginName string) (*plugin.Plugin, error) {
	if filepath.IsAbs(pluginName) {
		pi, err := plugin.Open(pluginName)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open module %s", pluginName)
		}
		return pi, nil
	}
	var lastErr error
	for _, pluginPath := range searchPaths(pluginName) {
		log.Debug("Trying to load module from path: %s...", pluginPath)
		pi, err := plugin.Open(pluginPath)
		if err == nil {
			log.Info("Success loading module %s.", pluginPath)
			return pi, nil
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, fmt.Sprintf("module %s not found in $%s, bin under $GOPATH=%s or local directory",
		pluginName, PluginDirEnv, os.Getenv("GOPATH")))
}
