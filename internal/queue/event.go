// Package queue carries snapshots in from extraction workers and run
// summaries out to monitoring over RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// Default queue names.  Both are durable.
const (
	ScrapeCompletedQueue   = "scrape.completed"
	PackSyncCompletedQueue = "packsync.completed"
)

// SyncCompletedEvent is published after every pipeline run, including runs
// that were skipped or rejected, so monitoring sees each scrape exactly once.
type SyncCompletedEvent struct {
	model.SyncSummary
	Partial     bool   `json:"partial"`
	CompletedAt string `json:"completed_at"`
}

// NewSyncCompletedEvent wraps a summary with its completion time.
func NewSyncCompletedEvent(s model.SyncSummary, at time.Time) SyncCompletedEvent {
	if s.Errors == nil {
		s.Errors = []model.ListingError{}
	}
	return SyncCompletedEvent{SyncSummary: s, Partial: s.Partial(), CompletedAt: at.UTC().Format(time.RFC3339)}
}
