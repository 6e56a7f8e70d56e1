package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/escalation"
)

// MotionSource supplies accelerometer readings.
type MotionSource interface {
	Sample() (escalation.MotionSample, error)
}

// StillSource is a MotionSource for hosts without an accelerometer. It
// reports a resting 1 g reading, so it never trips the motion trigger.
type StillSource struct{}

func (StillSource) Sample() (escalation.MotionSample, error) {
	return escalation.MotionSample{Z: 1}, nil
}

// MotionPump polls a motion source at a fixed interval and feeds samples
// into the escalation machine.
type MotionPump struct {
	source   MotionSource
	machine  *escalation.Machine
	interval time.Duration
	logger   zerolog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMotionPump creates a pump polling source every interval.
func NewMotionPump(source MotionSource, machine *escalation.Machine, interval time.Duration, logger zerolog.Logger) *MotionPump {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &MotionPump{
		source:   source,
		machine:  machine,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling in the background.
func (p *MotionPump) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample, err := p.source.Sample()
				if err != nil {
					p.logger.Debug().Err(err).Msg("motion sample unavailable")
					continue
				}
				if p.machine.HandleMotion(sample) {
					p.logger.Warn().
						Float64("magnitude", sample.Magnitude()).
						Msg("motion anomaly triggered panic mode")
				}
			}
		}
	}()
}

// Stop halts polling and waits for the loop to exit.
func (p *MotionPump) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}
