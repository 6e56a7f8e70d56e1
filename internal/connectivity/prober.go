package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProberConfig holds configuration for the HTTP reachability prober.
type ProberConfig struct {
	// URL is the endpoint probed for reachability (required). A HEAD
	// request that completes with any status below 500 counts as
	// reachable.
	URL string

	// Interval is the probe period. Default: 5 seconds.
	Interval time.Duration

	// Timeout bounds each probe request. Default: 3 seconds.
	Timeout time.Duration

	// Logger for prober operations.
	Logger zerolog.Logger
}

// Prober is a Monitor that derives reachability by periodically probing an
// HTTP endpoint. It uses a bare http.Client on purpose: retries or circuit
// breaking would mask the very failures the probe exists to observe.
type Prober struct {
	*hub

	config     ProberConfig
	httpClient *http.Client
	logger     zerolog.Logger

	startOnce sync.Once
	stop      context.CancelFunc
	done      chan struct{}
}

// NewProber creates a reachability prober. It starts pessimistic
// (unreachable) until the first successful probe.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}

	return &Prober{
		hub:        newHub(false),
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
		done:       make(chan struct{}),
	}
}

// Reachable reports the current reachability judgment.
func (p *Prober) Reachable() bool { return p.current() }

// Subscribe registers a transition observer.
func (p *Prober) Subscribe(fn func(bool)) func() { return p.subscribe(fn) }

// Start begins probing. It probes once immediately, then on every interval
// tick, until Stop is called or the context is cancelled.
func (p *Prober) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.stop = context.WithCancel(ctx)
		go p.run(ctx)
	})
}

// Stop halts probing and waits for the probe loop to exit.
func (p *Prober) Stop() {
	if p.stop == nil {
		return
	}
	p.stop()
	<-p.done
}

func (p *Prober) run(ctx context.Context) {
	defer close(p.done)

	p.probe(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.URL, http.NoBody)
	if err != nil {
		p.logger.Error().Err(err).Msg("building probe request")
		return
	}

	reachable := false
	resp, err := p.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		reachable = resp.StatusCode < 500
	}

	if reachable != p.current() {
		p.logger.Info().Bool("reachable", reachable).Msg("connectivity changed")
	}
	p.set(reachable)
}
