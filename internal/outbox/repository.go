// Package outbox owns the queue of undelivered alert drafts and the logic
// that decides between immediate delivery and queueing, plus the serialized
// FIFO drain that runs when connectivity returns.
package outbox

import (
	"context"
	"errors"

	"github.com/firealert/firealert/internal/alert"
)

// Store errors.
var (
	// ErrDraftNotFound is returned when removing an ID that is not queued.
	ErrDraftNotFound = errors.New("draft not found in outbox")
)

// Store is the durable FIFO queue backing the outbox. Insertion order is
// retry order. Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a draft at the tail. Appending an ID that is already
	// queued is a no-op: the existing entry and its position are kept.
	Append(ctx context.Context, d *alert.Draft) error

	// Remove deletes the entry with the given draft ID.
	Remove(ctx context.Context, id string) error

	// List returns a snapshot of all queued drafts in FIFO order.
	List(ctx context.Context) ([]*alert.Draft, error)

	// Len returns the number of queued drafts.
	Len(ctx context.Context) (int, error)
}
