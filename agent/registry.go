package agent

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps role names to agents. Lookups take a read lock only, so
// many in-flight tasks can resolve roles concurrently.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]Agent),
		logger: logger.With(zap.String("component", "agent_registry")),
	}
}

// Register binds an agent to a role, replacing any previous binding.
func (r *Registry) Register(role string, a Agent) {
	r.mu.Lock()
	_, replaced := r.agents[role]
	r.agents[role] = a
	r.mu.Unlock()

	r.logger.Info("agent registered",
		zap.String("role", role),
		zap.Bool("replaced", replaced),
	)
}

// Unregister removes the agent bound to role.
func (r *Registry) Unregister(role string) {
	r.mu.Lock()
	delete(r.agents, role)
	r.mu.Unlock()

	r.logger.Info("agent unregistered", zap.String("role", role))
}

// Find implements Lookup.
func (r *Registry) Find(role string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[role]
	return a, ok
}

// Roles returns the registered role names in sorted order.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]string, 0, len(r.agents))
	for role := range r.agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Len returns the number of registered roles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
