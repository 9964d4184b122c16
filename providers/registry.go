package providers

import (
	"fmt"
	"sort"
)

// GateFunc reports whether calls to the named provider are currently
// permitted. The orchestrator passes its circuit-breaker check here so the
// registry can hand back already-filtered candidate lists.
type GateFunc func(provider string) bool

// Registry is the static catalog of invokable (provider, model)
// configurations. It is built once at process start from the set of
// providers with valid credentials and is read-only afterwards, so lookups
// need no locking.
type Registry struct {
	invokers   map[string]Invoker
	candidates []Candidate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{invokers: make(map[string]Invoker)}
}

// Register adds an invoker and its candidates. Candidate.Provider is
// stamped with the invoker's name. Registering two invokers under the same
// name is a configuration error.
func (r *Registry) Register(inv Invoker, candidates ...Candidate) error {
	name := inv.Name()
	if _, exists := r.invokers[name]; exists {
		return fmt.Errorf("provider already registered: %s", name)
	}
	r.invokers[name] = inv
	for _, c := range candidates {
		c.Provider = name
		r.candidates = append(r.candidates, c)
	}
	return nil
}

// Invoker returns the invoker registered under name.
func (r *Registry) Invoker(name string) (Invoker, bool) {
	inv, ok := r.invokers[name]
	return inv, ok
}

// Providers returns the sorted names of all registered providers.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.invokers))
	for name := range r.invokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Candidates returns all registered candidates sorted ascending by
// priority, free-tier candidates first on ties, excluding any whose
// provider the gate currently disallows. A nil gate allows everything.
// An empty result is a normal condition, not an error.
func (r *Registry) Candidates(gate GateFunc) []Candidate {
	out := make([]Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		if gate != nil && !gate(c.Provider) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].FreeTier && !out[j].FreeTier
	})
	return out
}
