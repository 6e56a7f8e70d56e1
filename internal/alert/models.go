// Package alert defines the emergency alert domain model: drafts pending
// delivery, their lifecycle states, and the server-side alert records.
package alert

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validation and classification errors.
var (
	ErrMissingName     = errors.New("user name is required")
	ErrMissingPhone    = errors.New("user phone is required")
	ErrMissingLocation = errors.New("location is required")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrDraftSending    = errors.New("draft has a send in flight")
	ErrDraftDelivered  = errors.New("draft already delivered")
)

// MaxMessageLen is the maximum free-text message length.
const MaxMessageLen = 1000

// Defaults applied to auto-generated emergency drafts when no profile exists.
const (
	EmergencyFallbackName  = "Usuário de Emergência"
	EmergencyFallbackPhone = "Não informado"

	// EmergencyMessage is the fixed system-generated message attached to
	// alerts raised by the panic flow.
	EmergencyMessage = "ALERTA AUTOMÁTICO - EMERGÊNCIA DETECTADA POR MOVIMENTO BRUSCO"
)

// DeliveryState is the lifecycle stage of a draft.
type DeliveryState string

const (
	// DeliveryStateDraft is the initial state while the draft is assembled.
	DeliveryStateDraft DeliveryState = "draft"
	// DeliveryStateQueued means the draft awaits delivery in the outbox.
	DeliveryStateQueued DeliveryState = "queued"
	// DeliveryStateSending means a send attempt is in flight.
	DeliveryStateSending DeliveryState = "sending"
	// DeliveryStateDelivered means the server confirmed receipt.
	DeliveryStateDelivered DeliveryState = "delivered"
	// DeliveryStateFailed means the last send attempt failed.
	DeliveryStateFailed DeliveryState = "failed"
)

// Location is a coordinate pair with a human-readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// IsZero reports whether no location fix is present at all.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0 && l.Address == ""
}

// DisplayAddress returns the reverse-geocoded address, falling back to
// formatted coordinates when geocoding yielded nothing.
func (l Location) DisplayAddress() string {
	if l.Address != "" {
		return l.Address
	}
	return FormatCoordinates(l.Latitude, l.Longitude)
}

// FormatCoordinates renders a coordinate pair the way it appears in alert
// payloads when no street address is known.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// MediaRef points at a captured piece of evidence (photo, video or audio).
type MediaRef struct {
	URI      string        `json:"uri"`
	MimeType string        `json:"mime_type"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Draft is one emergency report pending or completed delivery. A draft is
// immutable after creation except for its DeliveryState.
type Draft struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	UserPhone string    `json:"user_phone"`
	Message   string    `json:"message"`
	Location  Location  `json:"location"`
	Photo     *MediaRef `json:"photo,omitempty"`
	Video     *MediaRef `json:"video,omitempty"`
	Audio     *MediaRef `json:"audio,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// IsEmergency distinguishes auto-generated panic alerts from
	// user-composed ones.
	IsEmergency bool `json:"is_emergency"`

	DeliveryState DeliveryState `json:"delivery_state"`
}

// NewDraft assembles a user-composed draft in the initial state with a
// locally unique ID and an immutable creation timestamp.
func NewDraft(userName, userPhone, message string, loc Location) *Draft {
	return &Draft{
		ID:            uuid.NewString(),
		UserName:      userName,
		UserPhone:     userPhone,
		Message:       message,
		Location:      loc,
		Timestamp:     time.Now().UTC(),
		DeliveryState: DeliveryStateDraft,
	}
}

// NewEmergencyDraft assembles the auto-generated panic alert. Empty profile
// fields fall back to the fixed emergency identity, and the message is the
// system-generated one. Panic alerts carry no media.
func NewEmergencyDraft(userName, userPhone string, loc Location) *Draft {
	if userName == "" {
		userName = EmergencyFallbackName
	}
	if userPhone == "" {
		userPhone = EmergencyFallbackPhone
	}
	d := NewDraft(userName, userPhone, EmergencyMessage, loc)
	d.IsEmergency = true
	return d
}

// Validate checks the invariants a draft must satisfy before it may leave
// the initial state.
func (d *Draft) Validate() error {
	if d.UserName == "" {
		return ErrMissingName
	}
	if d.UserPhone == "" {
		return ErrMissingPhone
	}
	if len([]rune(d.Message)) > MaxMessageLen {
		return ErrMessageTooLong
	}
	if d.Location.IsZero() {
		return ErrMissingLocation
	}
	return nil
}

// Media returns the present media references keyed by their multipart part
// name, in the fixed photo/video/audio order.
func (d *Draft) Media() []NamedMedia {
	var parts []NamedMedia
	if d.Photo != nil {
		parts = append(parts, NamedMedia{Name: "photo", Filename: "alert_photo.jpg", Ref: *d.Photo})
	}
	if d.Video != nil {
		parts = append(parts, NamedMedia{Name: "video", Filename: "alert_video.mp4", Ref: *d.Video})
	}
	if d.Audio != nil {
		parts = append(parts, NamedMedia{Name: "audio", Filename: "alert_audio.m4a", Ref: *d.Audio})
	}
	return parts
}

// NamedMedia is a media reference together with its fixed upload part name
// and filename.
type NamedMedia struct {
	Name     string
	Filename string
	Ref      MediaRef
}
