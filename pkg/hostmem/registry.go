package hostmem

import (
	"fmt"
	"sync"

	"github.com/flexio-dpa/ldo/pkg/ldo/window"
)

// Registry maps memory keys to the regions they protect, standing in for
// the NIC's memory-key translation table that window.Configure consults.
type Registry struct {
	mu      sync.RWMutex
	regions map[uint32]window.Region
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{regions: make(map[uint32]window.Region)}
}

// Register binds mkey to region, overwriting any previous binding.
func (r *Registry) Register(mkey uint32, region window.Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[mkey] = region
}

// Lookup satisfies window.Registry.
func (r *Registry) Lookup(mkey uint32) (window.Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	region, ok := r.regions[mkey]
	if !ok {
		return nil, fmt.Errorf("hostmem: no region registered for mkey %d", mkey)
	}
	return region, nil
}
