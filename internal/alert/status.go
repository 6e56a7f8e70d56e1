package alert

import "time"

// Status is the server-assigned handling state of a submitted alert.
type Status string

const (
	// StatusPending means the alert awaits dispatch.
	StatusPending Status = "pending"
	// StatusInProgress means responders are handling the alert.
	StatusInProgress Status = "in_progress"
	// StatusResolved means the alert was closed.
	StatusResolved Status = "resolved"
	// StatusUnknown covers any vocabulary the client does not recognize.
	StatusUnknown Status = "unknown"
)

// ParseStatus maps a raw server status string onto the known vocabulary.
// Unrecognized values map to StatusUnknown rather than failing.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusPending, StatusInProgress, StatusResolved:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// Record is an alert as reported back by the server.
type Record struct {
	ID        int64     `json:"id"`
	UserPhone string    `json:"user_phone"`
	Message   string    `json:"message"`
	Location  string    `json:"location"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Photo     string    `json:"photo,omitempty"`
}

// DisplayStatus returns the record's status mapped onto the known vocabulary.
func (r Record) DisplayStatus() Status {
	return ParseStatus(r.Status)
}
