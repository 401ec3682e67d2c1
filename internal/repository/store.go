package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/seatpack-sync/internal/database"
	"github.com/iliyamo/seatpack-sync/internal/identity"
	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/packsync"
)

// Store composes the repositories into the transactional operations the
// sync pipeline needs.  Each exported method is one transaction.
type Store struct {
	db       *sql.DB
	Entities *EntityRepo
	Packs    *SeatPackRepo
	Listings *POSListingRepo
	Jobs     *ScrapeJobRepo
}

// NewStore wires every repository to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Entities: NewEntityRepo(db),
		Packs:    NewSeatPackRepo(db),
		Listings: NewPOSListingRepo(db),
		Jobs:     NewScrapeJobRepo(db),
	}
}

// SaveSnapshot resolves and writes the entity graph of s atomically.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.Snapshot, resolver identity.Resolver, maxAttempts int) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.Entities.SaveSnapshotTx(ctx, tx, snap, resolver, maxAttempts)
	})
}

// SaveJob upserts a scrape job.
func (s *Store) SaveJob(ctx context.Context, job model.ScrapeJob) error {
	return s.Jobs.Save(ctx, job)
}

// Job returns a scrape job by id.
func (s *Store) Job(ctx context.Context, id string) (model.ScrapeJob, error) {
	return s.Jobs.Get(ctx, id)
}

// SyncPacks locks the active pack set of a performance, hands it to decide
// and writes the returned plan, all in one transaction.
func (s *Store) SyncPacks(ctx context.Context, performanceID, sourceWebsite, jobID string, maxAttempts int,
	decide func(active []model.SeatPack) packsync.Plan) (packsync.Plan, error) {
	var plan packsync.Plan
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		active, err := s.Packs.ActiveTx(ctx, tx, performanceID, sourceWebsite)
		if err != nil {
			return fmt.Errorf("load active packs: %w", err)
		}
		plan = decide(active)
		return s.Packs.ApplyPlanTx(ctx, tx, sourceWebsite, jobID, &plan, maxAttempts)
	})
	return plan, err
}

// ActiveListings implements pos.Ledger.
func (s *Store) ActiveListings(ctx context.Context, performanceID string) ([]model.POSListing, error) {
	return s.Listings.ListByPerformance(ctx, performanceID, model.ListingActive)
}

// ApplySplit implements pos.Ledger.
func (s *Store) ApplySplit(ctx context.Context, old, next model.POSListing, dropped []string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.Listings.SetStatusTx(ctx, tx, old.InventoryID, model.ListingSplit); err != nil {
			return err
		}
		if err := s.Listings.InsertTx(ctx, tx, next); err != nil {
			return err
		}
		if err := s.Packs.RelinkTx(ctx, tx, next.PackIDs(), next.InventoryID); err != nil {
			return err
		}
		return s.Packs.MarkDelistedTx(ctx, tx, dropped)
	})
}

// ApplyDelist implements pos.Ledger.
func (s *Store) ApplyDelist(ctx context.Context, listing model.POSListing) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.Listings.SetStatusTx(ctx, tx, listing.InventoryID, model.ListingInactive); err != nil {
			return err
		}
		return s.Packs.MarkDelistedTx(ctx, tx, listing.PackIDs())
	})
}

// PendingPacks returns active packs waiting for the publish sweep.
func (s *Store) PendingPacks(ctx context.Context, limit int) ([]model.SeatPack, error) {
	return s.Packs.Pending(ctx, limit)
}

// RecordPublished stores the listing created for a pack and marks the pack
// synced.
func (s *Store) RecordPublished(ctx context.Context, packID string, listing model.POSListing) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.Listings.InsertTx(ctx, tx, listing); err != nil {
			return err
		}
		return s.Packs.MarkSyncedTx(ctx, tx, packID, listing.InventoryID)
	})
}

// ListPacks returns a performance's packs for the read API.
func (s *Store) ListPacks(ctx context.Context, performanceID string, status model.PackStatus) ([]model.SeatPack, error) {
	return s.Packs.ListByPerformance(ctx, performanceID, status)
}

// ListListings returns a performance's listings for the read API.
func (s *Store) ListListings(ctx context.Context, performanceID string) ([]model.POSListing, error) {
	return s.Listings.ListByPerformance(ctx, performanceID, "")
}

// Performance returns a stored performance.
func (s *Store) Performance(ctx context.Context, id string) (model.Performance, error) {
	return s.Entities.Performance(ctx, id)
}
