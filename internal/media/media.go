// Package media defines how captured evidence (photo, video, audio) is
// represented and resolved to byte streams for upload. Capture itself is a
// platform concern; this package only owns the contracts.
package media

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/firealert/firealert/internal/alert"
)

// Capture limits carried over from the recording flow.
const (
	// MaxAudioDuration is the automatic stop point for audio recordings.
	MaxAudioDuration = 15 * time.Second

	// MaxVideoDuration is the maximum length of a video recording.
	MaxVideoDuration = 20 * time.Second
)

// Default mime types for captured evidence.
const (
	MimePhoto = "image/jpeg"
	MimeVideo = "video/mp4"
	MimeAudio = "audio/m4a"
)

// ErrCaptureUnavailable is returned when the platform capture device cannot
// be used (missing hardware or denied permission).
var ErrCaptureUnavailable = errors.New("media capture unavailable")

// CaptureProvider supplies evidence recordings on demand. Implementations
// live in the platform layer; the alert flow only consumes the references.
type CaptureProvider interface {
	// TakePhoto captures a single photo.
	TakePhoto(ctx context.Context) (*alert.MediaRef, error)

	// RecordVideo records video for at most max (capped at
	// MaxVideoDuration).
	RecordVideo(ctx context.Context, max time.Duration) (*alert.MediaRef, error)

	// RecordAudio records audio for at most max (capped at
	// MaxAudioDuration).
	RecordAudio(ctx context.Context, max time.Duration) (*alert.MediaRef, error)
}

// Opener resolves a media reference to its byte stream for upload.
type Opener interface {
	Open(ctx context.Context, ref alert.MediaRef) (io.ReadCloser, error)
}

// FileOpener resolves media references that point at local files.
type FileOpener struct{}

// Open opens the file behind the reference. A file:// scheme prefix is
// stripped first; some capture layers emit it, the filesystem does not
// understand it.
func (FileOpener) Open(_ context.Context, ref alert.MediaRef) (io.ReadCloser, error) {
	path := strings.TrimPrefix(ref.URI, "file://")
	return os.Open(path)
}
