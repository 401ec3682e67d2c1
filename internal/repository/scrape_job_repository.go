package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// ScrapeJobRepo stores one row per extraction attempt.  The candidate pack
// set is kept as JSON so every pack mutation can be traced to the scrape
// that caused it.
type ScrapeJobRepo struct {
	db *sql.DB
}

// NewScrapeJobRepo returns a new ScrapeJobRepo bound to the given database.
func NewScrapeJobRepo(db *sql.DB) *ScrapeJobRepo { return &ScrapeJobRepo{db: db} }

// Save inserts or replaces a job row.  The pipeline saves a job once when
// the outcome is known and again after packs were generated.
func (r *ScrapeJobRepo) Save(ctx context.Context, job model.ScrapeJob) error {
	candidates, err := json.Marshal(nonNilPacks(job.Candidates))
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	errs, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	if job.Errors == nil {
		errs = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scrape_jobs (id, performance_id, source_website, status, retryable, candidates, errors, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE performance_id = VALUES(performance_id), status = VALUES(status),
		   retryable = VALUES(retryable), candidates = VALUES(candidates), errors = VALUES(errors),
		   finished_at = VALUES(finished_at)`,
		job.ID, job.PerformanceID, job.SourceWebsite, job.Status, job.Retryable, candidates, errs,
		job.StartedAt.UTC(), job.FinishedAt.UTC())
	return err
}

// Get returns a job by id.
func (r *ScrapeJobRepo) Get(ctx context.Context, id string) (model.ScrapeJob, error) {
	var (
		job        model.ScrapeJob
		candidates []byte
		errs       []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, performance_id, source_website, status, retryable, candidates, errors, started_at, finished_at
		 FROM scrape_jobs WHERE id = ?`, id).Scan(
		&job.ID, &job.PerformanceID, &job.SourceWebsite, &job.Status, &job.Retryable,
		&candidates, &errs, &job.StartedAt, &job.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScrapeJob{}, ErrNotFound
	}
	if err != nil {
		return model.ScrapeJob{}, err
	}
	if err := json.Unmarshal(candidates, &job.Candidates); err != nil {
		return model.ScrapeJob{}, fmt.Errorf("decode candidates: %w", err)
	}
	if err := json.Unmarshal(errs, &job.Errors); err != nil {
		return model.ScrapeJob{}, fmt.Errorf("decode errors: %w", err)
	}
	return job, nil
}

func nonNilPacks(p []model.CandidatePack) []model.CandidatePack {
	if p == nil {
		return []model.CandidatePack{}
	}
	return p
}
