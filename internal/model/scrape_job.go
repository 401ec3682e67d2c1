package model

import (
	"time"

	"github.com/iliyamo/seatpack-sync/internal/scrape"
)

// ScrapeJob is one extraction attempt: the candidate pack set it produced
// and its terminal status.  It ties every pack mutation to a specific run.
type ScrapeJob struct {
	ID            string                 `json:"id"`             // scrape_jobs.id (uuid)
	PerformanceID string                 `json:"performance_id"` // scrape_jobs.performance_id (empty if validation failed)
	SourceWebsite string                 `json:"source_website"` // scrape_jobs.source_website
	Status        scrape.Status          `json:"status"`         // scrape_jobs.status
	Retryable     bool                   `json:"retryable"`      // scrape_jobs.retryable
	Candidates    []CandidatePack        `json:"candidates"`     // scrape_jobs.candidates (JSON)
	Errors        []scrape.ReportedError `json:"errors"`         // scrape_jobs.errors (JSON)
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
}
