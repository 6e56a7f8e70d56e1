package outbox

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/alert"
)

// ErrDrainInProgress is returned when a drain is requested while another is
// still running. The caller treats it as a no-op; newly queued drafts are
// picked up by the next drain cycle.
var ErrDrainInProgress = errors.New("drain already in progress")

// Submitter performs one delivery attempt for a draft and returns the
// server-assigned alert ID.
type Submitter interface {
	Submit(ctx context.Context, d *alert.Draft) (int64, error)
}

// Connectivity is the reachability judgment the outbox consults before
// attempting network I/O.
type Connectivity interface {
	Reachable() bool
}

// SendOutcome is the result of an immediate send attempt.
type SendOutcome string

const (
	// OutcomeDelivered means the server confirmed the alert.
	OutcomeDelivered SendOutcome = "delivered"
	// OutcomeQueuedOffline means no connectivity; the draft was queued
	// without any network attempt.
	OutcomeQueuedOffline SendOutcome = "queued_offline"
	// OutcomeFailed means the send attempt failed; the draft was queued as
	// a fallback and the underlying error is returned for a manual retry
	// affordance.
	OutcomeFailed SendOutcome = "failed"
)

// ServiceConfig holds configuration for the outbox service.
type ServiceConfig struct {
	// Store is the queue backend (optional, defaults to in-memory).
	Store Store

	// Submitter performs delivery attempts (required).
	Submitter Submitter

	// Connectivity supplies the reachability judgment (required).
	Connectivity Connectivity

	// OnOutcome is invoked with the outcome of every immediate send
	// attempt (optional).
	OnOutcome func(SendOutcome)

	// Logger for outbox operations.
	Logger zerolog.Logger
}

// Service is the single owner of the offline queue. All queue mutations go
// through it, and drains are serialized: one in-flight send at a time,
// at most one drain running.
type Service struct {
	store        Store
	submitter    Submitter
	connectivity Connectivity
	onOutcome    func(SendOutcome)
	logger       zerolog.Logger

	draining atomic.Bool
}

// NewService creates an outbox service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	onOutcome := cfg.OnOutcome
	if onOutcome == nil {
		onOutcome = func(SendOutcome) {}
	}
	return &Service{
		store:        store,
		submitter:    cfg.Submitter,
		connectivity: cfg.Connectivity,
		onOutcome:    onOutcome,
		logger:       cfg.Logger,
	}
}

// Enqueue appends the draft to the queue tail. Enqueueing an ID that is
// already queued leaves exactly one entry. A draft with a send in flight
// or one the server already confirmed may not be queued.
func (s *Service) Enqueue(ctx context.Context, d *alert.Draft) error {
	if d.DeliveryState == alert.DeliveryStateSending {
		return alert.ErrDraftSending
	}
	if d.DeliveryState == alert.DeliveryStateDelivered {
		return alert.ErrDraftDelivered
	}
	d.DeliveryState = alert.DeliveryStateQueued
	if err := s.store.Append(ctx, d); err != nil {
		return err
	}
	s.logger.Debug().Str("draft_id", d.ID).Msg("draft queued")
	return nil
}

// TrySendNow attempts immediate delivery. Without connectivity the draft is
// queued and no network I/O happens. A failed attempt queues the draft as a
// fallback and returns the underlying error so the caller can offer a
// manual retry; a delivered draft is never queued, and a queued draft that a
// manual retry delivers is removed from the queue.
func (s *Service) TrySendNow(ctx context.Context, d *alert.Draft) (SendOutcome, error) {
	if d.DeliveryState == alert.DeliveryStateSending {
		return "", alert.ErrDraftSending
	}
	if d.DeliveryState == alert.DeliveryStateDelivered {
		return "", alert.ErrDraftDelivered
	}
	if err := d.Validate(); err != nil {
		return "", err
	}

	if !s.connectivity.Reachable() {
		if err := s.Enqueue(ctx, d); err != nil {
			return "", err
		}
		s.logger.Info().Str("draft_id", d.ID).Msg("offline, alert queued for later delivery")
		s.onOutcome(OutcomeQueuedOffline)
		return OutcomeQueuedOffline, nil
	}

	d.DeliveryState = alert.DeliveryStateSending
	serverID, err := s.submitter.Submit(ctx, d)
	if err != nil {
		d.DeliveryState = alert.DeliveryStateFailed
		if qErr := s.Enqueue(ctx, d); qErr != nil {
			s.logger.Error().Err(qErr).Str("draft_id", d.ID).Msg("failed to queue fallback")
		}
		s.logger.Warn().Err(err).Str("draft_id", d.ID).Msg("alert send failed, queued for retry")
		s.onOutcome(OutcomeFailed)
		return OutcomeFailed, err
	}

	d.DeliveryState = alert.DeliveryStateDelivered
	if err := s.store.Remove(ctx, d.ID); err != nil && !errors.Is(err, ErrDraftNotFound) {
		s.logger.Error().Err(err).Str("draft_id", d.ID).Msg("failed to remove delivered draft")
	}
	s.logger.Info().
		Str("draft_id", d.ID).
		Int64("server_id", serverID).
		Msg("alert delivered")
	s.onOutcome(OutcomeDelivered)
	return OutcomeDelivered, nil
}

// DrainResult summarizes one drain run.
type DrainResult struct {
	Attempted int
	Delivered int
	Failed    int
	Remaining int
}

// Drain attempts delivery of every currently queued draft, strictly in FIFO
// order, one at a time. Delivered drafts are removed; failed ones stay in
// place for the next drain, and a failure never blocks the next draft. The
// queue is snapshotted at the start: drafts enqueued mid-drain are attempted
// on the next cycle only. A Drain called while one is running returns
// ErrDrainInProgress without doing anything.
func (s *Service) Drain(ctx context.Context) (*DrainResult, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer s.draining.Store(false)

	snapshot, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{}
	s.logger.Info().Int("queued", len(snapshot)).Msg("draining outbox")

	for _, d := range snapshot {
		if ctx.Err() != nil {
			break
		}
		if d.DeliveryState == alert.DeliveryStateSending ||
			d.DeliveryState == alert.DeliveryStateDelivered {
			continue
		}

		result.Attempted++
		d.DeliveryState = alert.DeliveryStateSending
		serverID, err := s.submitter.Submit(ctx, d)
		if err != nil {
			d.DeliveryState = alert.DeliveryStateQueued
			result.Failed++
			s.logger.Warn().Err(err).Str("draft_id", d.ID).Msg("drain attempt failed, draft stays queued")
			continue
		}

		d.DeliveryState = alert.DeliveryStateDelivered
		if err := s.store.Remove(ctx, d.ID); err != nil && !errors.Is(err, ErrDraftNotFound) {
			s.logger.Error().Err(err).Str("draft_id", d.ID).Msg("failed to remove delivered draft")
		}
		result.Delivered++
		s.logger.Info().
			Str("draft_id", d.ID).
			Int64("server_id", serverID).
			Msg("queued alert delivered")
	}

	remaining, err := s.store.Len(ctx)
	if err == nil {
		result.Remaining = remaining
	}
	return result, nil
}

// Depth returns the number of queued drafts.
func (s *Service) Depth(ctx context.Context) (int, error) {
	return s.store.Len(ctx)
}
