// Package service orchestrates the sync pipeline: gate a scrape outcome,
// persist the entity graph, rebuild seat packs, diff them against the
// active set and reconcile marketplace listings.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seatpack-sync/internal/identity"
	"github.com/iliyamo/seatpack-sync/internal/lock"
	"github.com/iliyamo/seatpack-sync/internal/logging"
	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/packsync"
	"github.com/iliyamo/seatpack-sync/internal/pos"
	"github.com/iliyamo/seatpack-sync/internal/scrape"
	"github.com/iliyamo/seatpack-sync/internal/seatpack"
)

// Store is the persistence boundary the pipeline writes through.
type Store interface {
	// SaveSnapshot resolves ids and writes the entity graph atomically.
	SaveSnapshot(ctx context.Context, s *model.Snapshot, resolver identity.Resolver, maxAttempts int) error
	SaveJob(ctx context.Context, job model.ScrapeJob) error
	// SyncPacks locks the active packs of a performance, asks decide for a
	// plan and writes it in the same transaction.
	SyncPacks(ctx context.Context, performanceID, sourceWebsite, jobID string, maxAttempts int,
		decide func(active []model.SeatPack) packsync.Plan) (packsync.Plan, error)
}

// Reconciler brings marketplace listings in line with surviving packs.
type Reconciler interface {
	Reconcile(ctx context.Context, performanceID string, surviving map[string]bool) (pos.Result, error)
}

// SummaryPublisher hands run summaries to monitoring.
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, summary model.SyncSummary) error
}

// Phase names a pipeline step in summaries and logs.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhaseEntities  Phase = "entities"
	PhaseLock      Phase = "lock"
	PhaseJob       Phase = "job"
	PhasePacks     Phase = "packs"
	PhaseReconcile Phase = "reconcile"
)

// PhaseResult is the outcome of one pipeline step.  A fatal result aborts
// the run; any other failure is recorded in the summary and the run goes on
// with whatever the remaining steps can still do.
type PhaseResult struct {
	Phase Phase
	Err   error
	Fatal bool
}

// Failed reports whether the phase failed.
func (r PhaseResult) Failed() bool { return r.Err != nil }

// SyncOptions configures SyncService.
type SyncOptions struct {
	IDPrefix    string // overrides the prefix derived from the source website
	MaxAttempts int    // identity collision budget
	Generators  *seatpack.Registry
	Locker      lock.Locker
	Reconciler  Reconciler
	Publisher   SummaryPublisher
	Logger      *zap.Logger
	Now         func() time.Time
}

// SyncService runs the per-snapshot pipeline.  Runs for different
// performances proceed in parallel; runs for the same performance are
// serialized by the locker.
type SyncService struct {
	store      Store
	sync       *packsync.Synchronizer
	generators *seatpack.Registry
	locker     lock.Locker
	reconciler Reconciler
	publisher  SummaryPublisher
	prefix     string
	attempts   int
	log        *zap.Logger
	now        func() time.Time
}

// NewSyncService builds the pipeline.  Reconciler and Publisher may be nil.
func NewSyncService(store Store, opts SyncOptions) *SyncService {
	s := &SyncService{
		store:      store,
		sync:       packsync.New(),
		generators: opts.Generators,
		locker:     opts.Locker,
		reconciler: opts.Reconciler,
		publisher:  opts.Publisher,
		prefix:     opts.IDPrefix,
		attempts:   opts.MaxAttempts,
		log:        logging.Component(opts.Logger, "sync"),
		now:        opts.Now,
	}
	if s.generators == nil {
		s.generators = seatpack.NewRegistry(nil)
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker(0)
	}
	if s.attempts <= 0 {
		s.attempts = identity.DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Resolver returns the id resolver used for snap.
func (s *SyncService) Resolver(snap *model.Snapshot) identity.Resolver {
	if s.prefix != "" {
		return identity.NewResolver(s.prefix)
	}
	return identity.ForSnapshot(snap)
}

// Process runs one snapshot through the pipeline and returns its summary.
// The error is non-nil only for fatal failures (validation, entity writes);
// pack and listing failures are reported inside the summary.
func (s *SyncService) Process(ctx context.Context, snap *model.Snapshot) (*model.SyncSummary, error) {
	outcome := snap.Outcome.Outcome()
	job := model.ScrapeJob{
		ID:            uuid.NewString(),
		SourceWebsite: snap.SourceWebsite,
		StartedAt:     s.now().UTC(),
	}
	sum := &model.SyncSummary{JobID: job.ID, SourceWebsite: snap.SourceWebsite}
	log := s.log.With(zap.String(logging.FieldJobID, job.ID), zap.String(logging.FieldSourceWebsite, snap.SourceWebsite))

	if verr := Validate(snap); verr != nil {
		return s.reject(ctx, log, job, sum, outcome, verr)
	}

	resolver := s.Resolver(snap)
	if err := s.store.SaveSnapshot(ctx, snap, resolver, s.attempts); err != nil {
		if errors.Is(err, identity.ErrUnknownRef) {
			return s.reject(ctx, log, job, sum, outcome, refProblem(err))
		}
		s.record(sum, PhaseResult{Phase: PhaseEntities, Err: err, Fatal: true})
		job.Status = scrape.StatusFailed
		job.Retryable = !errors.Is(err, identity.ErrCollisionBudget)
		job.Errors = outcome.ToReport().Errors
		sum.Status, sum.Retryable, sum.Skipped = job.Status, job.Retryable, true
		log.Error("persist entities failed", zap.Error(err))
		s.saveJob(ctx, log, &job, sum)
		s.publish(ctx, log, sum)
		return sum, fmt.Errorf("persist entities: %w", err)
	}

	perfID := snap.Performance.InternalID
	log = log.With(zap.String(logging.FieldPerformanceID, perfID))
	job.PerformanceID = perfID
	job.Status = outcome.Status()
	job.Retryable = outcome.Retryable()
	job.Errors = outcome.ToReport().Errors
	sum.PerformanceID = perfID
	sum.Status = job.Status
	sum.Retryable = job.Retryable

	if !outcome.CanSync() {
		log.Info("snapshot not eligible for sync", zap.String("status", string(job.Status)))
		sum.Skipped = true
		s.saveJob(ctx, log, &job, sum)
		s.publish(ctx, log, sum)
		return sum, nil
	}

	held, release, err := s.locker.Acquire(ctx, lock.Key(snap.SourceWebsite, perfID))
	if err != nil {
		s.record(sum, PhaseResult{Phase: PhaseLock, Err: err})
		s.saveJob(ctx, log, &job, sum)
		s.publish(ctx, log, sum)
		return sum, nil
	}
	defer release()

	candidates := s.generators.For(snap.SourceWebsite).GenerateSeatPacks(snap.Seats, snap.Sections, snap.Performance)
	for i := range candidates {
		candidates[i].PerformanceID = perfID
		candidates[i].InternalID = resolver.Pack(candidates[i])
	}
	job.Candidates = candidates
	s.saveJob(ctx, log, &job, sum)

	plan, err := s.store.SyncPacks(held, perfID, snap.SourceWebsite, job.ID, s.attempts,
		func(active []model.SeatPack) packsync.Plan { return s.sync.Plan(active, candidates) })
	if err != nil {
		s.record(sum, PhaseResult{Phase: PhasePacks, Err: err})
		s.recordLockLoss(ctx, held, sum)
		log.Error("pack sync failed", zap.Error(err))
		s.publish(ctx, log, sum)
		return sum, nil
	}
	sum.PacksCreated = len(plan.Create)
	sum.PacksKept = len(plan.Keep)
	sum.PacksPriceUpdated = len(plan.PriceUpdates())
	sum.PacksRetired = len(plan.Retire)

	if s.reconciler != nil {
		res, err := s.reconciler.Reconcile(held, perfID, plan.Surviving())
		if err != nil {
			s.record(sum, PhaseResult{Phase: PhaseReconcile, Err: err})
		} else {
			sum.ListingsSplit = res.Split
			sum.ListingsDelisted = res.Delisted
			sum.ListingsUnchanged = res.Unchanged
			sum.Errors = append(sum.Errors, res.Errors...)
		}
	}

	s.recordLockLoss(ctx, held, sum)

	log.Info("sync complete",
		zap.Int("packs_created", sum.PacksCreated),
		zap.Int("packs_kept", sum.PacksKept),
		zap.Int("packs_retired", sum.PacksRetired),
		zap.Int("listings_split", sum.ListingsSplit),
		zap.Int("listings_delisted", sum.ListingsDelisted),
		zap.Int("listing_errors", len(sum.Errors)),
	)
	s.publish(ctx, log, sum)
	return sum, nil
}

// reject records a snapshot that failed validation.  The job row is kept
// for audit but no entity of the snapshot is written.
func (s *SyncService) reject(ctx context.Context, log *zap.Logger, job model.ScrapeJob, sum *model.SyncSummary,
	outcome *scrape.Outcome, verr *ValidationError) (*model.SyncSummary, error) {
	for _, p := range verr.Problems {
		outcome.Record(p)
	}
	job.Status = scrape.StatusFailed
	job.Retryable = false
	job.Errors = outcome.ToReport().Errors
	sum.Status = job.Status
	sum.Skipped = true
	s.record(sum, PhaseResult{Phase: PhaseValidate, Err: verr, Fatal: true})
	log.Warn("snapshot rejected", zap.Error(verr))
	s.saveJob(ctx, log, &job, sum)
	s.publish(ctx, log, sum)
	return sum, verr
}

// recordLockLoss notes a lock that ended before the pass did.  Work after
// the loss was cancelled and is retried by the next scrape.
func (s *SyncService) recordLockLoss(ctx context.Context, held context.Context, sum *model.SyncSummary) {
	if ctx.Err() == nil && held.Err() != nil {
		s.record(sum, PhaseResult{Phase: PhaseLock, Err: context.Cause(held)})
	}
}

func (s *SyncService) record(sum *model.SyncSummary, r PhaseResult) {
	if !r.Failed() {
		return
	}
	sum.PhaseErrors = append(sum.PhaseErrors, model.PhaseError{Phase: string(r.Phase), Error: r.Err.Error()})
}

func (s *SyncService) saveJob(ctx context.Context, log *zap.Logger, job *model.ScrapeJob, sum *model.SyncSummary) {
	job.FinishedAt = s.now().UTC()
	if err := s.store.SaveJob(ctx, *job); err != nil {
		log.Error("save scrape job", zap.Error(err))
		s.record(sum, PhaseResult{Phase: PhaseJob, Err: err})
	}
}

func (s *SyncService) publish(ctx context.Context, log *zap.Logger, sum *model.SyncSummary) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSummary(ctx, *sum); err != nil {
		log.Warn("publish summary", zap.Error(err))
	}
}
