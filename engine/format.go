package engine

import (
	"sort"
	"strings"
	"sync"
)

// FactoryFunc builds a FileFactory from the format section of a
// configuration file.
type FactoryFunc func(config map[string]interface{}) (FileFactory, error)

var (
	formatsMu sync.RWMutex
	formats   = map[string]FactoryFunc{}
)

// RegisterFormat makes a container format available under name. Names are
// case-insensitive; registering a name twice replaces the previous factory.
func RegisterFormat(name string, newFactory FactoryFunc) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formats[strings.ToUpper(name)] = newFactory
}

func LookupFormat(name string) (FactoryFunc, error) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	f, found := formats[strings.ToUpper(name)]
	if !found {
		return nil, UnknownFormatError(name)
	}
	return f, nil
}

// Formats lists the registered format names.
func Formats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
