package extension

import (
	"sync"

	"github.com/viant/x"
)

// Types wraps the x registry with bare-name lookup: types register under
// their package-qualified key as usual, but can also be resolved by their
// short name, which is how configuration files refer to them.
type Types struct {
	x.Registry
	mu     sync.RWMutex
	byName map[string]string
}

// Register adds a data type to the registry.
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
	t.mu.Lock()
	t.byName[dataType.Name] = dataType.Key()
	t.mu.Unlock()
}

// Lookup returns a data type by its package-qualified key or bare name.
func (t *Types) Lookup(dataType string) *x.Type {
	if ret := t.Registry.Lookup(dataType); ret != nil {
		return ret
	}
	t.mu.RLock()
	key, ok := t.byName[dataType]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return t.Registry.Lookup(key)
}

// NewTypes creates a new types registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{
		Registry: *x.NewRegistry(options...),
		byName:   make(map[string]string),
	}
}
