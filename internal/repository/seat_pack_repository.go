package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/seatpack-sync/internal/identity"
	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/packsync"
)

// SeatPackRepo provides access to the seat_packs table.  Rows are never
// deleted: retiring a pack flips status to inactive, and a pack whose
// composition comes back is reactivated in place.
type SeatPackRepo struct {
	db *sql.DB
}

// NewSeatPackRepo returns a new SeatPackRepo bound to the given database.
func NewSeatPackRepo(db *sql.DB) *SeatPackRepo { return &SeatPackRepo{db: db} }

const packColumns = `internal_id, performance_id, source_website, section_id, row_label, start_seat, end_seat,
	pack_size, unit_price_cents, price_cents, price_tier, accessible, view_type, seats,
	status, pos_status, pos_listing_id, scrape_job_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (model.SeatPack, error) {
	var (
		p         model.SeatPack
		seats     []byte
		listingID sql.NullString
		jobID     sql.NullString
	)
	err := row.Scan(
		&p.InternalID, &p.PerformanceID, &p.SourceWebsite, &p.SectionID, &p.RowLabel, &p.StartSeat, &p.EndSeat,
		&p.PackSize, &p.UnitPriceCents, &p.PriceCents, &p.PriceTier, &p.Accessible, &p.ViewType, &seats,
		&p.Status, &p.POSStatus, &listingID, &jobID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.SeatPack{}, err
	}
	if len(seats) > 0 {
		if err := json.Unmarshal(seats, &p.Seats); err != nil {
			return model.SeatPack{}, fmt.Errorf("decode seats of pack %s: %w", p.InternalID, err)
		}
	}
	p.POSListingID = listingID.String
	p.ScrapeJobID = jobID.String
	return p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPacks(ctx context.Context, q querier, query string, args ...any) ([]model.SeatPack, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SeatPack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveTx returns the active packs of one performance and site, locking
// them until the transaction ends.
func (r *SeatPackRepo) ActiveTx(ctx context.Context, tx *sql.Tx, performanceID, sourceWebsite string) ([]model.SeatPack, error) {
	return queryPacks(ctx, tx,
		`SELECT `+packColumns+` FROM seat_packs
		 WHERE performance_id = ? AND source_website = ? AND status = 'active'
		 ORDER BY section_id, row_label, start_seat
		 FOR UPDATE`, performanceID, sourceWebsite)
}

// ListByPerformance returns a performance's packs, optionally filtered by
// status.
func (r *SeatPackRepo) ListByPerformance(ctx context.Context, performanceID string, status model.PackStatus) ([]model.SeatPack, error) {
	if status == "" {
		return queryPacks(ctx, r.db,
			`SELECT `+packColumns+` FROM seat_packs WHERE performance_id = ?
			 ORDER BY section_id, row_label, start_seat`, performanceID)
	}
	return queryPacks(ctx, r.db,
		`SELECT `+packColumns+` FROM seat_packs WHERE performance_id = ? AND status = ?
		 ORDER BY section_id, row_label, start_seat`, performanceID, status)
}

// Pending returns up to limit active packs not yet on the marketplace,
// oldest first.
func (r *SeatPackRepo) Pending(ctx context.Context, limit int) ([]model.SeatPack, error) {
	return queryPacks(ctx, r.db,
		`SELECT `+packColumns+` FROM seat_packs
		 WHERE status = 'active' AND pos_status = 'pending'
		 ORDER BY created_at, internal_id LIMIT ?`, limit)
}

// ApplyPlanTx writes a sync plan: retire, reprice, then create or
// reactivate.  Every touched row records jobID.  Each Create entry gets the
// internal id it was stored under.
func (r *SeatPackRepo) ApplyPlanTx(ctx context.Context, tx *sql.Tx, sourceWebsite, jobID string, plan *packsync.Plan, maxAttempts int) error {
	for _, p := range plan.Retire {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_packs SET status = 'inactive', scrape_job_id = ? WHERE internal_id = ?`,
			jobID, p.InternalID); err != nil {
			return fmt.Errorf("retire pack %s: %w", p.InternalID, err)
		}
	}
	for _, k := range plan.PriceUpdates() {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_packs SET unit_price_cents = ?, price_cents = ?, scrape_job_id = ? WHERE internal_id = ?`,
			k.Candidate.UnitPriceCents, k.Candidate.PriceCents, jobID, k.Pack.InternalID); err != nil {
			return fmt.Errorf("reprice pack %s: %w", k.Pack.InternalID, err)
		}
	}
	for i := range plan.Create {
		id, err := r.createTx(ctx, tx, sourceWebsite, jobID, plan.Create[i], maxAttempts)
		if err != nil {
			return err
		}
		plan.Create[i].InternalID = id
	}
	return nil
}

// createTx reactivates the row holding c's composition or inserts a new
// one, returning its internal id.  A reactivated pack whose listing is still
// ACTIVE keeps its marketplace binding; otherwise it goes back to pending.
func (r *SeatPackRepo) createTx(ctx context.Context, tx *sql.Tx, sourceWebsite, jobID string, c model.CandidatePack, maxAttempts int) (string, error) {
	seats, err := json.Marshal(c.Seats)
	if err != nil {
		return "", fmt.Errorf("encode seats: %w", err)
	}

	var existing, listingStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT sp.internal_id, COALESCE(l.status, '')
		 FROM seat_packs sp
		 LEFT JOIN pos_listings l ON l.pos_inventory_id = sp.pos_listing_id
		 WHERE sp.performance_id = ? AND sp.section_id = ? AND sp.row_label = ? AND sp.start_seat = ? AND sp.end_seat = ?
		 FOR UPDATE`,
		c.PerformanceID, c.SectionID, c.RowLabel, c.StartSeat, c.EndSeat).Scan(&existing, &listingStatus)
	switch {
	case err == nil:
		binding := `pos_status = 'pending', pos_listing_id = NULL,`
		if model.ListingStatus(listingStatus) == model.ListingActive {
			binding = ""
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE seat_packs SET status = 'active', `+binding+`
			        pack_size = ?, unit_price_cents = ?, price_cents = ?, price_tier = ?, accessible = ?,
			        view_type = ?, seats = ?, scrape_job_id = ?
			 WHERE internal_id = ?`,
			c.PackSize, c.UnitPriceCents, c.PriceCents, c.PriceTier, c.Accessible, c.ViewType, seats, jobID, existing)
		if err != nil {
			return "", fmt.Errorf("reactivate pack %s: %w", existing, err)
		}
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("look up pack %s: %w", c.Key(), err)
	}

	base := c.InternalID
	if base == "" {
		return "", fmt.Errorf("pack %s has no base id", c.Key())
	}
	id, err := identity.Allocate(ctx, base, maxAttempts, func(ctx context.Context, candidate string) (bool, error) {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM seat_packs WHERE internal_id = ? FOR UPDATE`, candidate).Scan(&n); err != nil {
			return false, err
		}
		// The composition lookup above found no row, so any row holding
		// this id belongs to a different pack.
		return n == 0, nil
	})
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO seat_packs (internal_id, performance_id, source_website, section_id, row_label, start_seat, end_seat,
		        pack_size, unit_price_cents, price_cents, price_tier, accessible, view_type, seats,
		        status, pos_status, scrape_job_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active', 'pending', ?)`,
		id, c.PerformanceID, sourceWebsite, c.SectionID, c.RowLabel, c.StartSeat, c.EndSeat,
		c.PackSize, c.UnitPriceCents, c.PriceCents, c.PriceTier, c.Accessible, c.ViewType, seats, jobID)
	if err != nil {
		if isDuplicate(err) {
			return "", fmt.Errorf("%w: pack %s", ErrConflict, id)
		}
		return "", fmt.Errorf("insert pack %s: %w", id, err)
	}
	return id, nil
}

// MarkSyncedTx records that a pack now lives on listingID.
func (r *SeatPackRepo) MarkSyncedTx(ctx context.Context, tx *sql.Tx, packID, listingID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE seat_packs SET pos_status = 'synced', pos_listing_id = ? WHERE internal_id = ?`, listingID, packID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: pack %s", ErrNotFound, packID)
	}
	return nil
}

// RelinkTx points packs at a new listing after a split.
func (r *SeatPackRepo) RelinkTx(ctx context.Context, tx *sql.Tx, packIDs []string, listingID string) error {
	for _, id := range packIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_packs SET pos_listing_id = ? WHERE internal_id = ?`, listingID, id); err != nil {
			return err
		}
	}
	return nil
}

// MarkDelistedTx flags packs as removed from the marketplace.
func (r *SeatPackRepo) MarkDelistedTx(ctx context.Context, tx *sql.Tx, packIDs []string) error {
	for _, id := range packIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_packs SET pos_status = 'delisted', pos_listing_id = NULL WHERE internal_id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}
