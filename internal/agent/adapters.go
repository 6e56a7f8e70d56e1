package agent

import (
	"github.com/rs/zerolog"
)

// LogCallPrompter satisfies the escalation call prompt by logging the
// numbers. A host UI replaces it with a real dialer surface.
type LogCallPrompter struct {
	Logger zerolog.Logger
}

func (p LogCallPrompter) PromptCall(numbers []string) {
	p.Logger.Warn().Strs("numbers", numbers).Msg("EMERGENCY CALL REQUIRED")
}

// LogFeedback satisfies the escalation alerting feedback by logging
// start and stop. A host UI replaces it with sound and vibration.
type LogFeedback struct {
	Logger zerolog.Logger
}

func (f LogFeedback) Start() {
	f.Logger.Warn().Msg("alerting feedback started")
}

func (f LogFeedback) Stop() {
	f.Logger.Info().Msg("alerting feedback stopped")
}
