// Package format resolves the container format a recording is written in.
// Built-in formats register themselves with engine.RegisterFormat; external
// formats are Go plugins exporting
//
//	NewFileFactory(config map[string]interface{}) (engine.FileFactory, error)
//
// Configuration is as follows.
//
//	format: KWIK
//	format_module: myformat.so   # optional, overrides format
//	format_config: <according to the format>
package format

import (
	"github.com/pkg/errors"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/plugins"
	"github.com/ephysio/kwikstore/utils/log"
)

const SymbolName = "NewFileFactory"

// SymbolLoader is an interface to retrieve a symbol object from a plugin.
type SymbolLoader interface {
	LoadSymbol(symbolName string) (interface{}, error)
}

// Load builds a FileFactory using the NewFileFactory symbol of loader.
func Load(loader SymbolLoader, config map[string]interface{}) (engine.FileFactory, error) {
	sym, err := loader.LoadSymbol(SymbolName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", SymbolName)
	}

	var newFunc engine.FactoryFunc
	switch fn := sym.(type) {
	case func(map[string]interface{}) (engine.FileFactory, error):
		newFunc = fn
	case engine.FactoryFunc:
		newFunc = fn
	default:
		return nil, errors.Errorf("%s has an unexpected signature, got %T", SymbolName, sym)
	}
	return newFunc(config)
}

// Resolve returns the FileFactory of a plugin module when module is set, and
// of the built-in format registered under name otherwise.
func Resolve(name, module string, config map[string]interface{}) (engine.FileFactory, error) {
	if module != "" {
		loader, err := plugins.NewSymbolLoader(module)
		if err != nil {
			return nil, err
		}
		fac, err := Load(loader, config)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load format module %s", module)
		}
		log.Info("using container format from module %s", module)
		return fac, nil
	}
	newFactory, err := engine.LookupFormat(name)
	if err != nil {
		return nil, errors.Wrapf(err, "available formats: %v", engine.Formats())
	}
	log.Info("using container format %s", name)
	return newFactory(config)
}
