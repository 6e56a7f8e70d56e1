// Package resilience wraps outbound HTTP calls with timeouts, bounded
// retries and a circuit breaker. Every remote endpoint the agent talks to
// (alert submission, reverse geocoding) goes through a Client from this
// package.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds circuit breaker settings for one endpoint.
type BreakerConfig struct {
	// Name identifies the breaker in logs and the status surface.
	Name string

	// MaxRequests is how many probe requests pass in half-open state.
	// Default: 1
	MaxRequests uint32

	// Interval is the closed-state counter reset period. Zero disables it.
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before probing again.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// ReadyToTrip decides when to open the breaker. Nil means
	// DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is invoked on every breaker state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns the breaker settings used by the agent's
// endpoint clients.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		OpenTimeout: 60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker after at least 5 requests with a
// failure rate of 50% or higher.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	ratio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && ratio >= 0.5
}

// NewBreaker builds a gobreaker circuit breaker from the given settings.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ReadyToTrip,
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}
