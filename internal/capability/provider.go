// Package capability implements the seven task providers behind the
// scheduler: retrieval, similarity, recommendation, comparison, analysis,
// saved-list and conversational fallback.
package capability

import (
	"context"
	"fmt"

	"github.com/yoonhw/jibsa/internal/task"
)

// Provider executes one capability's business logic. Implementations are
// stateless per call; shared state (cache, history) is injected at
// construction.
type Provider interface {
	Capability() task.Capability
	Execute(ctx context.Context, t *task.Task) (*task.Result, error)
}

// Registry is the closed capability → provider dispatch table.
type Registry struct {
	providers map[task.Capability]Provider
}

// NewRegistry indexes the given providers. Registering two providers for
// one capability is a programming error.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[task.Capability]Provider, len(providers))}
	for _, p := range providers {
		c := p.Capability()
		if _, dup := r.providers[c]; dup {
			return nil, fmt.Errorf("duplicate provider for capability %q", c)
		}
		r.providers[c] = p
	}
	return r, nil
}

// Get returns the provider bound to the capability.
func (r *Registry) Get(c task.Capability) (Provider, bool) {
	p, ok := r.providers[c]
	return p, ok
}

// Capabilities returns the registered capability set.
func (r *Registry) Capabilities() []task.Capability {
	out := make([]task.Capability, 0, len(r.providers))
	for _, c := range task.Capabilities {
		if _, ok := r.providers[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
