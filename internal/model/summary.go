package model

import "github.com/iliyamo/seatpack-sync/internal/scrape"

// ListingError records a reconciliation failure for one POS listing.
type ListingError struct {
	ListingID    string `json:"listing_id"`
	ErrorMessage string `json:"error_message"`
}

// PhaseError records a non-fatal failure of a whole pipeline phase.
type PhaseError struct {
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// SyncSummary is the per-run report handed to monitoring.  Partial failures
// are listed explicitly; a run is only clean when both error lists are empty.
type SyncSummary struct {
	JobID             string         `json:"job_id"`
	PerformanceID     string         `json:"performance_id"`
	SourceWebsite     string         `json:"source_website"`
	Status            scrape.Status  `json:"status"`
	Retryable         bool           `json:"retryable"`
	Skipped           bool           `json:"skipped"`
	PacksCreated      int            `json:"packs_created"`
	PacksKept         int            `json:"packs_kept"`
	PacksPriceUpdated int            `json:"packs_price_updated"`
	PacksRetired      int            `json:"packs_retired"`
	ListingsSplit     int            `json:"listings_split"`
	ListingsDelisted  int            `json:"listings_delisted"`
	ListingsUnchanged int            `json:"listings_unchanged"`
	Errors            []ListingError `json:"errors"`
	PhaseErrors       []PhaseError   `json:"phase_errors,omitempty"`
}

// Partial reports whether anything in the run failed.
func (s SyncSummary) Partial() bool {
	return len(s.Errors) > 0 || len(s.PhaseErrors) > 0
}
