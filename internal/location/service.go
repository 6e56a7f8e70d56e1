// Package location supplies the device position together with a
// reverse-geocoded address, with a bounded wait so a slow fix can never
// hang the submission flow.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/alert"
)

// Location errors surfaced to the user with a retry affordance. They are
// never retried automatically.
var (
	// ErrPermissionDenied means the platform refused location access.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrLocationUnavailable means the fix timed out or the provider
	// failed.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// PositionSource supplies raw coordinates. Implementations wrap the
// platform positioning hardware.
type PositionSource interface {
	Position(ctx context.Context) (lat, lon float64, err error)
}

// Geocoder resolves coordinates to a human-readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// ServiceConfig holds configuration for the location service.
type ServiceConfig struct {
	// Source supplies raw coordinates (required).
	Source PositionSource

	// Geocoder resolves addresses (optional; without one every location
	// uses formatted coordinates).
	Geocoder Geocoder

	// Timeout bounds one Current call end to end. Default: 10 seconds.
	Timeout time.Duration

	// GeocodeTTL is how long resolved addresses are cached.
	// Default: 10 minutes.
	GeocodeTTL time.Duration

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service produces alert locations. Geocode results are cached per
// coordinate grid cell, and the last successful fix is kept so the panic
// flow can reuse it without waiting.
type Service struct {
	source   PositionSource
	geocoder Geocoder
	timeout  time.Duration
	logger   zerolog.Logger

	addresses *gocache.Cache

	mu   sync.Mutex
	last *alert.Location
}

// NewService creates a location service.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.GeocodeTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		source:    cfg.Source,
		geocoder:  cfg.Geocoder,
		timeout:   timeout,
		logger:    cfg.Logger,
		addresses: gocache.New(ttl, 2*ttl),
	}
}

// Current fetches a fresh fix and resolves its address. The whole call is
// bounded by the configured timeout; on expiry it fails with
// ErrLocationUnavailable rather than hanging the caller. When reverse
// geocoding yields nothing the address falls back to formatted coordinates.
func (s *Service) Current(ctx context.Context) (alert.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lat, lon, err := s.source.Position(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return alert.Location{}, err
		}
		s.logger.Warn().Err(err).Msg("position fix failed")
		return alert.Location{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	loc := alert.Location{
		Latitude:  lat,
		Longitude: lon,
		Address:   s.resolveAddress(ctx, lat, lon),
	}

	s.mu.Lock()
	s.last = &loc
	s.mu.Unlock()

	return loc, nil
}

// Last returns the most recent successful fix, if any.
func (s *Service) Last() (alert.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return alert.Location{}, false
	}
	return *s.last, true
}

// resolveAddress reverse geocodes the coordinates, caching results per grid
// cell. Any failure degrades to formatted coordinates; an alert is never
// blocked on an address.
func (s *Service) resolveAddress(ctx context.Context, lat, lon float64) string {
	fallback := alert.FormatCoordinates(lat, lon)
	if s.geocoder == nil {
		return fallback
	}

	key := fmt.Sprintf("%.4f:%.4f", lat, lon)
	if cached, ok := s.addresses.Get(key); ok {
		return cached.(string)
	}

	address, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil || address == "" {
		if err != nil {
			s.logger.Warn().Err(err).Msg("reverse geocoding failed, using coordinates")
		}
		return fallback
	}

	s.addresses.SetDefault(key, address)
	return address
}

// StaticSource is a PositionSource pinned to fixed coordinates, used when
// the agent runs without positioning hardware.
type StaticSource struct {
	Lat float64
	Lon float64
}

// Position returns the configured coordinates.
func (s StaticSource) Position(_ context.Context) (float64, float64, error) {
	return s.Lat, s.Lon, nil
}
