package extractor

import (
	"fmt"
	"sort"

	"github.com/use-agent/harvest/models"
)

// Registry maps actor ids to extractor factories. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	entries map[string]entry
}

type entry struct {
	info    models.ActorInfo
	factory Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds factory under id. Registering the same id twice panics.
func (r *Registry) Register(id string, factory Factory) {
	if _, dup := r.entries[id]; dup {
		panic(fmt.Sprintf("extractor: actor %q registered twice", id))
	}
	info := factory(Deps{}).Metadata()
	info.ID = id
	r.entries[id] = entry{info: info, factory: factory}
}

// Lookup returns the metadata and factory for id.
func (r *Registry) Lookup(id string) (models.ActorInfo, Factory, bool) {
	e, ok := r.entries[id]
	return e.info, e.factory, ok
}

// List returns metadata for every actor, sorted by id.
func (r *Registry) List() []models.ActorInfo {
	out := make([]models.ActorInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered actors.
func (r *Registry) Len() int { return len(r.entries) }
