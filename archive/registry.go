package archive

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[Kind]Factory)
)

// Register makes a backend adapter available under kind. Adapters call it from init.
// Registering an undeclared kind or the same kind twice panics.
func Register(kind Kind, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if !kind.Valid() {
		panic(fmt.Sprintf("archive: Register called with undeclared kind %q", kind))
	}
	if f == nil {
		panic("archive: Register factory is nil")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("archive: Register called twice for %s", kind))
	}
	factories[kind] = f
}

// Registered reports whether an adapter is registered for kind.
func Registered(kind Kind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[kind]
	return ok
}

func lookup(kind Kind) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := factories[kind]
	if !ok {
		return nil, Errorf(ErrBackendUnavailable, "backend %s (import its adapter package)", kind)
	}
	return f, nil
}
