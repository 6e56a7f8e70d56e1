// Package history exposes the user's submitted alerts and their
// server-side resolution status.
package history

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/alert"
)

// Lister fetches alert records from the reporting backend.
type Lister interface {
	List(ctx context.Context) ([]alert.Record, error)
}

// Stats summarizes the resolution status of a set of alerts.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Unknown    int `json:"unknown"`
}

// Service retrieves per-user alert history. The backend list endpoint is
// not filterable, so the phone filter is applied client-side.
type Service struct {
	lister Lister
	logger zerolog.Logger
}

// NewService creates an alert history service.
func NewService(lister Lister, logger zerolog.Logger) *Service {
	return &Service{lister: lister, logger: logger}
}

// ForPhone returns the alerts submitted under the given phone number,
// newest first as the backend returns them.
func (s *Service) ForPhone(ctx context.Context, phone string) ([]alert.Record, error) {
	records, err := s.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching alert history: %w", err)
	}

	filtered := make([]alert.Record, 0, len(records))
	for _, r := range records {
		if r.UserPhone == phone {
			filtered = append(filtered, r)
		}
	}

	s.logger.Debug().
		Int("total", len(records)).
		Int("matched", len(filtered)).
		Msg("alert history fetched")
	return filtered, nil
}

// Summarize tallies records by resolution status. Statuses outside the
// known vocabulary count as unknown.
func Summarize(records []alert.Record) Stats {
	stats := Stats{Total: len(records)}
	for _, r := range records {
		switch r.DisplayStatus() {
		case alert.StatusPending:
			stats.Pending++
		case alert.StatusInProgress:
			stats.InProgress++
		case alert.StatusResolved:
			stats.Resolved++
		default:
			stats.Unknown++
		}
	}
	return stats
}
