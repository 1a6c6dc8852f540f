package httpclient

import (
	"sort"
	"sync"
)

// CircuitBreakerStatus is the health view of one registered client.
type CircuitBreakerStatus struct {
	Name string `json:"name"`
	CircuitBreakerStats
}

// Registry keeps named clients so their circuit breakers can be reported
// by the health endpoint.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Register adds a named client, replacing any client with the same name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
}

// Statuses returns the breaker status of every registered client, sorted by name.
func (r *Registry) Statuses() []CircuitBreakerStatus {
	r.mu.RLock()
	statuses := make([]CircuitBreakerStatus, 0, len(r.clients))
	for name, client := range r.clients {
		statuses = append(statuses, CircuitBreakerStatus{
			Name:                name,
			CircuitBreakerStats: client.breaker.Stats(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// AnyOpen reports whether any registered breaker is open.
func (r *Registry) AnyOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, client := range r.clients {
		if client.breaker.State() == CircuitOpen {
			return true
		}
	}
	return false
}
