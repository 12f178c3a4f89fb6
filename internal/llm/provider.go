// Package llm defines the LLM provider adapter contract, a registry of
// concrete adapters, prompt construction, and the defensive response
// parser the pipeline relies on to treat provider output as untrusted text
// that merely claims to be JSON.
package llm

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Credentials carries the per-request override (if any) for one provider
// tag, falling back to server configuration when HasOverride is false. A
// caller-supplied key can activate a provider that is otherwise disabled
// by server configuration.
type Credentials struct {
	APIKey      string
	Model       string
	Endpoint    string
	HasOverride bool
}

// Provider is a single LLM backend's generate/validate/synthesize surface.
// Every adapter shares: a per-call timeout, a single user-role message
// carrying the computed prompt, and a JSON-only response expectation whose
// parsing is handled uniformly by ParseGenerateResponse/ParseValidateResponse/
// ParseSynthesizeResponse. Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider for logging, circuit-breaker keying, and
	// credential-tag lookup.
	Name() string

	// IsAvailable reports whether this provider can currently be used,
	// considering both process configuration and any per-request override.
	IsAvailable(creds Credentials) bool

	// Complete sends prompt as the sole user message and returns the raw
	// text response plus how long the call took. Elapsed is meaningful even
	// on error, since synthesis provider selection depends on it.
	Complete(ctx context.Context, prompt string, creds Credentials) (text string, elapsed time.Duration, err error)
}

// Registry holds the set of configured provider adapters, grounded on this
// codebase's existing provider registry pattern (register-by-name,
// enumerate, look up).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, preserving registration order for callers that
// need a stable iteration order (e.g. tie-breaking in synthesis selection).
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns the named provider, or an error if it was never registered.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, eris.Errorf("llm: no provider registered as %q", name)
	}
	return p, nil
}

// List returns all registered providers in registration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Available returns the subset of registered providers whose IsAvailable
// returns true for the given per-provider credential map (looked up by
// provider name; a missing entry means no override).
func (r *Registry) Available(creds map[string]Credentials) []Provider {
	all := r.List()
	out := make([]Provider, 0, len(all))
	for _, p := range all {
		if p.IsAvailable(creds[p.Name()]) {
			out = append(out, p)
		}
	}
	return out
}
