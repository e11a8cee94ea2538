package agent

import (
	"fmt"
	"sync"
)

// Registry is a name-keyed, insertion-order-preserving store of
// DynamicAgents. The orchestrator treats the registry as read-only during
// execution; registration happens during setup, matching spec.md §5's
// "the agent registry is read-only during execution".
type Registry struct {
	mu     sync.RWMutex
	order  []Ident
	agents map[Ident]DynamicAgent
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[Ident]DynamicAgent)}
}

// Register adds an agent under its own Name(). Returns an error if the
// name is already registered.
func (r *Registry) Register(a DynamicAgent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Name()
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent: %q is already registered", name)
	}
	r.agents[name] = a
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the agent registered under name, or ok=false.
func (r *Registry) Lookup(name Ident) (DynamicAgent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Descriptor summarizes an agent's routing metadata for the strategy
// generator's available-agent listing (spec.md §4.9).
type Descriptor struct {
	Name         Ident
	Description  string
	Capabilities []CapabilityView
	// ExpertiseText is the agent's expertise rendered with no detected
	// context (nil), the form the strategy generator sees.
	ExpertiseText string
}

// CapabilityView is the plain-data rendering of payload.Capability used in
// Descriptor listings, kept separate so this package does not need the
// payload import for callers that only want descriptors.
type CapabilityView struct {
	Category    string
	Action      string
	Description string
}

// ListForGenerator returns descriptors for every registered agent, in
// registration order, for the strategy generator's available-agent
// listing.
func (r *Registry) ListForGenerator() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		a := r.agents[name]
		caps := a.Capabilities()
		views := make([]CapabilityView, 0, len(caps))
		for _, c := range caps {
			views = append(views, CapabilityView{Category: c.Category, Action: c.Action, Description: c.Description})
		}
		out = append(out, Descriptor{
			Name:          name,
			Description:   a.Description(),
			Capabilities:  views,
			ExpertiseText: a.Expertise().Render(nil),
		})
	}
	return out
}

// Names returns the registered agent names in registration order.
func (r *Registry) Names() []Ident {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Ident, len(r.order))
	copy(out, r.order)
	return out
}
