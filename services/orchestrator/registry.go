package orchestrator

import (
	"sync"

	"learncoach/services/generate"
	"learncoach/store"
)

// Registry hands out one orchestrator per user so concurrent HTTP requests
// for the same user share state.
type Registry struct {
	mu     sync.Mutex
	kv     store.Store
	gen    generate.ContentGenerator
	active map[string]*Orchestrator
}

func NewRegistry(kv store.Store, gen generate.ContentGenerator) *Registry {
	return &Registry{
		kv:     kv,
		gen:    gen,
		active: make(map[string]*Orchestrator),
	}
}

func (r *Registry) For(userID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.active[userID]; ok {
		return o
	}
	o := New(r.kv, r.gen, userID)
	r.active[userID] = o
	return o
}
