// Package escalation implements the panic flow: a state machine that
// reacts to a manual trigger or a motion anomaly, auto-sends an emergency
// alert after a countdown, and escalates to emergency calling. Every stage
// before the call is cancellable.
package escalation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/alert"
	"github.com/firealert/firealert/internal/outbox"
)

// State is the escalation machine state.
type State string

const (
	// StateIdle means no panic session is active.
	StateIdle State = "idle"
	// StateTriggered is entered on a manual trigger or motion anomaly.
	StateTriggered State = "triggered"
	// StateAutoSendScheduled means the auto-send countdown is running.
	StateAutoSendScheduled State = "auto_send_scheduled"
	// StateSending means the emergency alert submission is in flight.
	StateSending State = "sending"
	// StateEscalating means the submission resolved and the call countdown
	// is running.
	StateEscalating State = "escalating"
)

// TriggerSource records what activated a panic session.
type TriggerSource string

const (
	// SourceManual is a long-press confirmation by the user.
	SourceManual TriggerSource = "manual"
	// SourceMotion is an accelerometer anomaly.
	SourceMotion TriggerSource = "motion"
)

// Defaults for the escalation timing and trigger sensitivity.
const (
	// DefaultAutoSendDelay is the internal countdown before the alert is
	// auto-sent.
	DefaultAutoSendDelay = 3 * time.Second

	// DefaultAutoCallDelay is the pause between the send resolving and the
	// emergency-call prompt.
	DefaultAutoCallDelay = 2 * time.Second

	// DefaultMotionThreshold is the 3-axis acceleration magnitude above
	// which a motion sample triggers panic mode, in g.
	DefaultMotionThreshold = 2.5

	// WarningDuration is the countdown length surfaced to the user, which
	// is deliberately longer than the internal auto-send delay.
	WarningDuration = 10 * time.Second
)

// DefaultEmergencyNumbers are the numbers offered by the call prompt.
func DefaultEmergencyNumbers() []string { return []string{"193", "112"} }

// MotionSample is one 3-axis accelerometer reading, in g.
type MotionSample struct {
	X, Y, Z float64
}

// Magnitude returns the acceleration vector magnitude.
func (s MotionSample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Session describes one activation of the machine, from trigger to cancel
// or completed call sequence.
type Session struct {
	ID        string
	StartedAt time.Time
	Source    TriggerSource
}

// Sender delivers the emergency draft through the shared submission path.
type Sender interface {
	TrySendNow(ctx context.Context, d *alert.Draft) (outbox.SendOutcome, error)
}

// Locator supplies the location fix for the emergency draft.
type Locator interface {
	// Current fetches a fresh, bounded location fix.
	Current(ctx context.Context) (alert.Location, error)

	// Last returns the most recent fix, if one exists.
	Last() (alert.Location, bool)
}

// CallPrompter surfaces the emergency-call prompt to the user.
type CallPrompter interface {
	PromptCall(numbers []string)
}

// Feedback controls the alerting feedback (sound, vibration) that runs
// while a session is active. Implementations must not call back into the
// machine.
type Feedback interface {
	Start()
	Stop()
}

type noopFeedback struct{}

func (noopFeedback) Start() {}
func (noopFeedback) Stop()  {}

// MachineConfig holds configuration for the escalation machine.
type MachineConfig struct {
	// Sender delivers the emergency alert (required).
	Sender Sender

	// Locator supplies the location fix (required).
	Locator Locator

	// Prompter surfaces the call prompt (required).
	Prompter CallPrompter

	// Feedback controls alerting feedback (optional).
	Feedback Feedback

	// Profile supplies the registered name and phone (optional; empty
	// values fall back to the fixed emergency identity).
	Profile func() (name, phone string)

	// OnTrigger is invoked after each successful activation (optional).
	OnTrigger func(Session)

	// EmergencyNumbers offered by the call prompt (optional).
	EmergencyNumbers []string

	// AutoSendDelay overrides the auto-send countdown (optional).
	AutoSendDelay time.Duration

	// AutoCallDelay overrides the call-prompt delay (optional).
	AutoCallDelay time.Duration

	// MotionThreshold overrides the trigger sensitivity (optional).
	MotionThreshold float64

	// Logger for machine operations.
	Logger zerolog.Logger
}

// Machine is the panic escalation state machine. All timed transitions are
// keyed to a session generation, so cancellation is synchronous: once
// Cancel returns, no timer from the cancelled session can fire a
// transition.
type Machine struct {
	sender    Sender
	locator   Locator
	prompter  CallPrompter
	feedback  Feedback
	profile   func() (string, string)
	onTrigger func(Session)
	numbers   []string
	logger    zerolog.Logger

	autoSendDelay   time.Duration
	autoCallDelay   time.Duration
	motionThreshold float64

	mu          sync.Mutex
	state       State
	session     *Session
	gen         uint64
	timer       *time.Timer
	callStarted bool
}

// NewMachine creates an idle escalation machine.
func NewMachine(cfg MachineConfig) *Machine {
	feedback := cfg.Feedback
	if feedback == nil {
		feedback = noopFeedback{}
	}
	profile := cfg.Profile
	if profile == nil {
		profile = func() (string, string) { return "", "" }
	}
	onTrigger := cfg.OnTrigger
	if onTrigger == nil {
		onTrigger = func(Session) {}
	}
	numbers := cfg.EmergencyNumbers
	if len(numbers) == 0 {
		numbers = DefaultEmergencyNumbers()
	}
	autoSend := cfg.AutoSendDelay
	if autoSend == 0 {
		autoSend = DefaultAutoSendDelay
	}
	autoCall := cfg.AutoCallDelay
	if autoCall == 0 {
		autoCall = DefaultAutoCallDelay
	}
	threshold := cfg.MotionThreshold
	if threshold == 0 {
		threshold = DefaultMotionThreshold
	}

	return &Machine{
		sender:          cfg.Sender,
		locator:         cfg.Locator,
		prompter:        cfg.Prompter,
		feedback:        feedback,
		profile:         profile,
		onTrigger:       onTrigger,
		numbers:         numbers,
		logger:          cfg.Logger,
		autoSendDelay:   autoSend,
		autoCallDelay:   autoCall,
		motionThreshold: threshold,
		state:           StateIdle,
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveSession returns the current session, if one is active.
func (m *Machine) ActiveSession() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Trigger activates panic mode. It is a no-op unless the machine is idle:
// re-entrant triggers while a session is active are ignored. On activation
// the machine passes through Triggered into AutoSendScheduled within the
// same call and starts the auto-send countdown.
func (m *Machine) Trigger(source TriggerSource) (Session, bool) {
	m.mu.Lock()

	if m.state != StateIdle {
		m.mu.Unlock()
		m.logger.Debug().Str("state", string(m.state)).Msg("trigger ignored, session already active")
		return Session{}, false
	}

	m.gen++
	m.session = &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Source:    source,
	}
	m.callStarted = false

	m.state = StateTriggered
	m.logger.Warn().
		Str("session_id", m.session.ID).
		Str("source", string(source)).
		Msg("panic mode triggered")
	m.feedback.Start()

	m.state = StateAutoSendScheduled
	g := m.gen
	m.timer = time.AfterFunc(m.autoSendDelay, func() { m.advance(g) })
	m.logger.Info().
		Dur("auto_send_in", m.autoSendDelay).
		Msg("emergency auto-send scheduled")

	session := *m.session
	m.mu.Unlock()

	m.onTrigger(session)
	return session, true
}

// HandleMotion feeds one accelerometer sample. A magnitude above the
// threshold triggers panic mode when idle; anything else is ignored.
func (m *Machine) HandleMotion(sample MotionSample) bool {
	if sample.Magnitude() <= m.motionThreshold {
		return false
	}
	_, ok := m.Trigger(SourceMotion)
	return ok
}

// SendNow short-circuits the countdown: the alert is sent immediately
// instead of waiting for the timer. It is a no-op unless the countdown is
// running.
func (m *Machine) SendNow(ctx context.Context) bool {
	m.mu.Lock()
	if m.state != StateAutoSendScheduled {
		m.mu.Unlock()
		return false
	}
	m.stopTimerLocked()
	g := m.gen
	m.mu.Unlock()

	m.run(ctx, g)
	return true
}

// Cancel aborts the session and returns the machine to idle. It stops the
// pending timer and the alerting feedback. Cancelling is a no-op when idle
// or once the emergency call has been initiated. The stop is synchronous:
// after Cancel returns, no transition from the cancelled session fires.
func (m *Machine) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle || m.callStarted {
		return false
	}

	m.gen++
	m.stopTimerLocked()
	m.feedback.Stop()

	sessionID := ""
	if m.session != nil {
		sessionID = m.session.ID
	}
	m.state = StateIdle
	m.session = nil

	m.logger.Info().Str("session_id", sessionID).Msg("panic session cancelled")
	return true
}

// advance is the timer callback for the auto-send countdown.
func (m *Machine) advance(g uint64) {
	m.run(context.Background(), g)
}

// run carries the session through Sending and into Escalating. The
// submission outcome never blocks the call stage: calling outranks
// acknowledging a network failure.
func (m *Machine) run(ctx context.Context, g uint64) {
	m.mu.Lock()
	if m.gen != g || m.state != StateAutoSendScheduled {
		m.mu.Unlock()
		return
	}
	m.state = StateSending
	sessionID := m.session.ID
	m.mu.Unlock()

	loc := m.ensureLocation(ctx)
	name, phone := m.profile()
	draft := alert.NewEmergencyDraft(name, phone, loc)

	outcome, err := m.sender.TrySendNow(ctx, draft)
	if err != nil {
		m.logger.Error().Err(err).
			Str("session_id", sessionID).
			Msg("emergency auto-send failed, proceeding to call")
	} else {
		m.logger.Info().
			Str("session_id", sessionID).
			Str("outcome", string(outcome)).
			Msg("emergency alert dispatched")
	}

	m.mu.Lock()
	if m.gen != g {
		// Cancelled while the send was in flight.
		m.mu.Unlock()
		return
	}
	m.state = StateEscalating
	m.timer = time.AfterFunc(m.autoCallDelay, func() { m.escalate(g) })
	m.mu.Unlock()
}

// escalate surfaces the emergency-call prompt and completes the session.
func (m *Machine) escalate(g uint64) {
	m.mu.Lock()
	if m.gen != g || m.state != StateEscalating {
		m.mu.Unlock()
		return
	}
	m.callStarted = true
	sessionID := m.session.ID
	numbers := m.numbers
	m.mu.Unlock()

	m.logger.Warn().
		Str("session_id", sessionID).
		Strs("numbers", numbers).
		Msg("prompting emergency call")
	m.prompter.PromptCall(numbers)

	m.mu.Lock()
	if m.gen == g {
		m.feedback.Stop()
		m.state = StateIdle
		m.session = nil
		m.callStarted = false
	}
	m.mu.Unlock()
}

// ensureLocation guarantees the emergency draft carries a location: the
// last known fix when present, otherwise a fresh bounded fetch. If both
// fail the draft ships with zero coordinates and their formatted address;
// the call stage is never blocked on positioning.
func (m *Machine) ensureLocation(ctx context.Context) alert.Location {
	if loc, ok := m.locator.Last(); ok {
		return loc
	}

	loc, err := m.locator.Current(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("no location fix for emergency alert")
		return alert.Location{Address: alert.FormatCoordinates(0, 0)}
	}
	return loc
}

// stopTimerLocked stops any pending timed transition. Callers hold m.mu;
// the generation check in the callbacks makes a lost Stop race harmless.
func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
