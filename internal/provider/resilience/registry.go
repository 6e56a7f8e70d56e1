package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// EndpointHealth is a snapshot of one endpoint's delivery health as exposed
// on the agent status surface.
type EndpointHealth struct {
	// Name is the endpoint identifier.
	Name string

	// CircuitState is the current breaker state.
	CircuitState gobreaker.State

	// Counts holds the breaker's request statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is when the endpoint last answered successfully.
	LastSuccessAt *time.Time

	// LastFailureAt is when the endpoint last failed.
	LastFailureAt *time.Time

	// LastError is the most recent failure message, if any.
	LastError string
}

// IsHealthy reports whether the endpoint circuit is closed.
func (h *EndpointHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// Registry tracks the agent's endpoint clients and their delivery health.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*registeredEndpoint
}

type registeredEndpoint struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*registeredEndpoint)}
}

// Register adds an endpoint client to the registry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = &registeredEndpoint{client: client}
}

// RecordSuccess notes a successful exchange with the endpoint.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.endpoints[name]; ok {
		now := time.Now()
		e.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed exchange with the endpoint.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.endpoints[name]; ok {
		now := time.Now()
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns the health snapshot for one endpoint, or nil if unknown.
func (r *Registry) Health(name string) *EndpointHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.endpoints[name]
	if !ok {
		return nil
	}
	return snapshot(name, e)
}

// AllHealth returns health snapshots for every registered endpoint.
func (r *Registry) AllHealth() []*EndpointHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*EndpointHealth, 0, len(r.endpoints))
	for name, e := range r.endpoints {
		out = append(out, snapshot(name, e))
	}
	return out
}

func snapshot(name string, e *registeredEndpoint) *EndpointHealth {
	return &EndpointHealth{
		Name:          name,
		CircuitState:  e.client.BreakerState(),
		Counts:        e.client.BreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
