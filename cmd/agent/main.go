// Package main provides the entrypoint for the FireAlert agent.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/agent"
	"github.com/firealert/firealert/internal/alert/bombeiros"
	"github.com/firealert/firealert/internal/config"
	"github.com/firealert/firealert/internal/connectivity"
	"github.com/firealert/firealert/internal/escalation"
	"github.com/firealert/firealert/internal/history"
	"github.com/firealert/firealert/internal/location"
	"github.com/firealert/firealert/internal/location/nominatim"
	"github.com/firealert/firealert/internal/outbox"
	"github.com/firealert/firealert/internal/profile"
	"github.com/firealert/firealert/internal/provider/resilience"
	"github.com/firealert/firealert/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "firealert-agent"

	// Load .env if present; real environment wins
	_ = godotenv.Load() //nolint:errcheck // missing .env is fine

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("api", cfg.APIBaseURL).
		Msg("starting FireAlert agent")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Resilient upstream clients, tracked in a shared health registry
	registry := resilience.NewRegistry()

	alertsHTTP := resilience.NewClient(resilience.DefaultClientConfig(bombeiros.EndpointName))
	registry.Register(bombeiros.EndpointName, alertsHTTP)

	geocodeHTTP := resilience.NewClient(resilience.DefaultClientConfig(nominatim.EndpointName))
	registry.Register(nominatim.EndpointName, geocodeHTTP)

	alertsClient := bombeiros.NewClient(bombeiros.ClientConfig{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: alertsHTTP,
		Logger:     log,
	})

	// Offline outbox, durable when a queue path is configured
	var store outbox.Store
	if cfg.QueuePath != "" {
		sqliteStore, err := outbox.NewSQLiteStore(cfg.QueuePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.QueuePath).Msg("failed to open outbox store")
		}
		store = sqliteStore
		log.Info().Str("path", cfg.QueuePath).Msg("durable outbox store opened")
	} else {
		store = outbox.NewMemoryStore()
		log.Warn().Msg("using in-memory outbox store, queued alerts will not survive restarts")
	}

	// Reachability monitor
	prober := connectivity.NewProber(connectivity.ProberConfig{
		URL:      cfg.ProbeURL,
		Interval: cfg.ProbeInterval,
		Logger:   log,
	})

	// Bound late so the outbox and machine hooks can record into them
	var metrics *telemetry.AgentMetrics

	outboxSvc := outbox.NewService(outbox.ServiceConfig{
		Store:        store,
		Submitter:    alertsClient,
		Connectivity: prober,
		OnOutcome: func(outcome outbox.SendOutcome) {
			if metrics != nil {
				metrics.RecordSubmission(context.Background(), string(outcome))
			}
			switch outcome {
			case outbox.OutcomeDelivered:
				registry.RecordSuccess(bombeiros.EndpointName)
			case outbox.OutcomeFailed:
				registry.RecordFailure(bombeiros.EndpointName, nil)
			}
		},
		Logger: log,
	})

	// Location with reverse geocoding
	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    cfg.GeocodeBaseURL,
		HTTPClient: geocodeHTTP,
		Logger:     log,
	})
	locator := location.NewService(location.ServiceConfig{
		Source:   location.StaticSource{Lat: cfg.Latitude, Lon: cfg.Longitude},
		Geocoder: geocoder,
		Timeout:  cfg.LocationTimeout,
		Logger:   log,
	})

	profiles := profile.NewFileStore(cfg.ProfilePath)

	// Panic escalation
	machine := escalation.NewMachine(escalation.MachineConfig{
		Sender:   outboxSvc,
		Locator:  locator,
		Prompter: agent.LogCallPrompter{Logger: log},
		Feedback: agent.LogFeedback{Logger: log},
		Profile: func() (string, string) {
			p, err := profiles.Load()
			if err != nil {
				log.Error().Err(err).Msg("failed to load profile for emergency alert")
				return "", ""
			}
			return p.UserName, p.UserPhone
		},
		OnTrigger: func(session escalation.Session) {
			if metrics != nil {
				metrics.RecordPanicSession(context.Background(), string(session.Source))
			}
		},
		EmergencyNumbers: cfg.EmergencyNumbers,
		AutoSendDelay:    cfg.AutoSendDelay,
		AutoCallDelay:    cfg.AutoCallDelay,
		MotionThreshold:  cfg.MotionThreshold,
		Logger:           log,
	})

	metrics, err = telemetry.NewAgentMetrics(tp.Meter, func() int {
		depth, err := outboxSvc.Depth(context.Background())
		if err != nil {
			return 0
		}
		return depth
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	app := agent.New(agent.Config{
		Outbox:     outboxSvc,
		Monitor:    prober,
		Machine:    machine,
		History:    history.NewService(alertsClient, log),
		Profiles:   profiles,
		Locator:    locator,
		Registry:   registry,
		Metrics:    metrics,
		ListenAddr: cfg.ListenAddr,
		Version:    Version,
		Logger:     log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := app.Start()
	prober.Start(runCtx)

	pump := agent.NewMotionPump(agent.StillSource{}, machine, cfg.SampleInterval, log)
	pump.Start(runCtx)

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("status server failed")
	}

	cancel()
	pump.Stop()
	prober.Stop()
	machine.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("agent forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("agent stopped")
}
