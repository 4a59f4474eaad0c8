// Package feed fetches a player's recent battle history from the game API.
package feed

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
)

// Feed returns a player's recent history, most recent first. Failures are
// always bracket.ErrFeedUnavailable, never bracket.ErrNoMatchingRecord.
type Feed interface {
	FetchRecentHistory(ctx context.Context, tag string) ([]bracket.HistoryEntry, error)
}

// Invalidator is implemented by feeds that keep a cache.
type Invalidator interface {
	Invalidate(ctx context.Context, tag string)
}
