package platform

import (
	"fmt"

	"github.com/tillpoint/go-pos-sync/internal/orders"
)

// Registry maps a platform identifier to its Dispatcher. It is built once at
// startup and injected; no runtime lookup or late module loading.
type Registry struct {
	dispatchers map[string]Dispatcher
}

// NewRegistry builds a registry from the given mapping. The offline dispatcher
// is always present so the mapping stays total over known platforms.
func NewRegistry(dispatchers map[string]Dispatcher) *Registry {
	m := map[string]Dispatcher{
		orders.PlatformOffline: OfflineDispatcher{},
	}
	for name, d := range dispatchers {
		m[name] = d
	}
	return &Registry{dispatchers: m}
}

// For returns the dispatcher registered for a platform.
func (r *Registry) For(platform string) (Dispatcher, error) {
	d, ok := r.dispatchers[platform]
	if !ok {
		return nil, fmt.Errorf("no dispatcher registered for platform %q", platform)
	}
	return d, nil
}
