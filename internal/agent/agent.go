// Package agent wires the alerting subsystems together: it drains the
// offline outbox when connectivity returns and serves the local status
// API.
package agent

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/connectivity"
	"github.com/firealert/firealert/internal/escalation"
	"github.com/firealert/firealert/internal/history"
	"github.com/firealert/firealert/internal/outbox"
	"github.com/firealert/firealert/internal/profile"
	"github.com/firealert/firealert/internal/provider/resilience"
	"github.com/firealert/firealert/internal/telemetry"
)

// Config holds the agent's collaborators.
type Config struct {
	Outbox     *outbox.Service
	Monitor    connectivity.Monitor
	Machine    *escalation.Machine
	History    *history.Service
	Profiles   profile.Store
	Locator    escalation.Locator
	Registry   *resilience.Registry
	Metrics    *telemetry.AgentMetrics
	ListenAddr string
	Version    string
	Logger     zerolog.Logger
}

// Agent runs the background reconnect drain and the status server.
type Agent struct {
	outbox   *outbox.Service
	monitor  connectivity.Monitor
	machine  *escalation.Machine
	history  *history.Service
	profiles profile.Store
	locator  escalation.Locator
	registry *resilience.Registry
	metrics  *telemetry.AgentMetrics
	version  string
	logger   zerolog.Logger

	server      *http.Server
	unsubscribe func()
}

// New creates the agent. Call Start to begin serving.
func New(cfg Config) *Agent {
	a := &Agent{
		outbox:   cfg.Outbox,
		monitor:  cfg.Monitor,
		machine:  cfg.Machine,
		history:  cfg.History,
		profiles: cfg.Profiles,
		locator:  cfg.Locator,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		version:  cfg.Version,
		logger:   cfg.Logger,
	}
	a.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      a.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a
}

// Handler returns the status API handler.
func (a *Agent) Handler() http.Handler {
	return a.server.Handler
}

// Start subscribes to connectivity transitions and starts the status
// server. It does not block; server errors are delivered on the returned
// channel.
func (a *Agent) Start() <-chan error {
	a.unsubscribe = a.monitor.Subscribe(func(reachable bool) {
		if !reachable {
			a.logger.Warn().Msg("connectivity lost")
			return
		}
		a.logger.Info().Msg("connectivity restored, draining outbox")
		go a.drain(context.Background())
	})

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.server.Addr).Msg("status server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops the connectivity subscription and drains in-flight
// status requests.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.server.Shutdown(ctx)
}

// drain runs one outbox drain cycle. A cycle already in flight is normal
// when transitions arrive quickly; it is logged and skipped.
func (a *Agent) drain(ctx context.Context) {
	start := time.Now()
	res, err := a.outbox.Drain(ctx)
	if err != nil {
		if errors.Is(err, outbox.ErrDrainInProgress) {
			a.logger.Debug().Msg("drain already running, skipping")
			return
		}
		a.logger.Error().Err(err).Msg("outbox drain failed")
		return
	}

	if a.metrics != nil {
		a.metrics.RecordDrain(ctx, time.Since(start).Seconds(), res.Delivered, res.Failed)
	}
	a.logger.Info().
		Int("attempted", res.Attempted).
		Int("delivered", res.Delivered).
		Int("failed", res.Failed).
		Int("remaining", res.Remaining).
		Dur("took", time.Since(start)).
		Msg("outbox drain complete")
}
