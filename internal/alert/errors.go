package alert

import "fmt"

// FailureKind classifies why a submission attempt did not succeed.
type FailureKind string

const (
	// FailureRejected means the server answered with a non-2xx status or a
	// body that did not parse as the expected structure.
	FailureRejected FailureKind = "submission_rejected"
	// FailureTransport means the request never completed at the network
	// level.
	FailureTransport FailureKind = "transport_failure"
)

// SubmissionError describes a failed submission attempt. The raw status and
// body are kept for diagnostics so a non-2xx with a parseable error body is
// never mistaken for success.
type SubmissionError struct {
	Kind       FailureKind
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Kind == FailureTransport && e.Err != nil:
		return fmt.Sprintf("alert submission transport failure: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("alert submission rejected: status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("alert submission rejected: %s", e.Body)
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsRejected reports whether the error is a server-side rejection.
func (e *SubmissionError) IsRejected() bool { return e.Kind == FailureRejected }

// IsTransport reports whether the error is a network-level failure.
func (e *SubmissionError) IsTransport() bool { return e.Kind == FailureTransport }
