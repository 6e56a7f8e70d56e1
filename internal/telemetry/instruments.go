package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AgentMetrics bundles the domain instruments recorded by the agent.
type AgentMetrics struct {
	alertsSubmitted metric.Int64Counter
	panicSessions   metric.Int64Counter
	drainDuration   metric.Float64Histogram
}

// NewAgentMetrics creates the agent's instruments on the given meter. The
// queue depth callback is registered as an observable gauge so drains and
// enqueues do not need to report it inline.
func NewAgentMetrics(meter metric.Meter, queueDepth func() int) (*AgentMetrics, error) {
	alertsSubmitted, err := meter.Int64Counter("firealert.alerts.submitted",
		metric.WithDescription("Alert submission attempts by outcome"))
	if err != nil {
		return nil, err
	}

	panicSessions, err := meter.Int64Counter("firealert.panic.sessions",
		metric.WithDescription("Panic sessions by trigger source"))
	if err != nil {
		return nil, err
	}

	drainDuration, err := meter.Float64Histogram("firealert.outbox.drain.duration",
		metric.WithDescription("Outbox drain cycle duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	if queueDepth != nil {
		_, err = meter.Int64ObservableGauge("firealert.outbox.depth",
			metric.WithDescription("Drafts waiting in the offline outbox"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(queueDepth()))
				return nil
			}))
		if err != nil {
			return nil, err
		}
	}

	return &AgentMetrics{
		alertsSubmitted: alertsSubmitted,
		panicSessions:   panicSessions,
		drainDuration:   drainDuration,
	}, nil
}

// RecordSubmission counts one submission attempt with its outcome.
func (m *AgentMetrics) RecordSubmission(ctx context.Context, outcome string) {
	m.alertsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPanicSession counts one panic activation with its trigger source.
func (m *AgentMetrics) RecordPanicSession(ctx context.Context, source string) {
	m.panicSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordDrain records one drain cycle's duration and delivery split.
func (m *AgentMetrics) RecordDrain(ctx context.Context, seconds float64, delivered, failed int) {
	m.drainDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.Int("delivered", delivered),
			attribute.Int("failed", failed),
		))
}
