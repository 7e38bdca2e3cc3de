// Package client provides the thin Entry/Publisher/Subscriber veneer over
// Broker's self participant (spec.md §1: "per-client thin accessors ...
// pure veneer over the broker's operations"), matching the convenience
// wrappers original_source/include/nt/nt{entry,publisher,subscriber}.h give
// the embedding process.
package client

import (
	"sync"
	"sync/atomic"

	"github.com/Compdog-inc/pico-radio/nt"
)

var nextUID int32

func allocUID() int32 {
	return int32(atomic.AddInt32(&nextUID, 1))
}

// registry tracks the latest announced id/value per topic name for self,
// fed by the single SelfCallbacks set installed on the broker. One registry
// backs every Subscriber/Entry sharing the same *nt.Broker.
type registry struct {
	mu       sync.Mutex
	idToName map[int64]string
	values   map[string]nt.Value
}

var (
	registriesMu sync.Mutex
	registries   = map[*nt.Broker]*registry{}
)

func ensureRegistry(b *nt.Broker) *registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()

	if r, ok := registries[b]; ok {
		return r
	}

	r := &registry{idToName: map[int64]string{}, values: map[string]nt.Value{}}
	b.SetSelfCallbacks(nt.SelfCallbacks{
		OnTopicAnnounced: func(name string, id int64, apiType nt.Type, _ nt.Properties) {
			r.mu.Lock()
			r.idToName[id] = name
			if _, ok := r.values[name]; !ok {
				r.values[name] = nt.ZeroValue(apiType)
			}
			r.mu.Unlock()
		},
		OnTopicUnannounced: func(name string, id int64) {
			r.mu.Lock()
			delete(r.idToName, id)
			delete(r.values, name)
			r.mu.Unlock()
		},
		OnTopicUpdate: func(id int64, _ uint64, value nt.Value) {
			r.mu.Lock()
			if name, ok := r.idToName[id]; ok {
				r.values[name] = value
			}
			r.mu.Unlock()
		},
	})
	registries[b] = r
	return r
}

func (r *registry) get(name string) (nt.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[name]
	return v, ok
}
