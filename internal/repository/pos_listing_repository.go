package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// POSListingRepo is the local ledger of marketplace listings: one
// pos_listings row per inventory record plus its pos_listing_packs join
// rows.
type POSListingRepo struct {
	db *sql.DB
}

// NewPOSListingRepo returns a new POSListingRepo bound to the given database.
func NewPOSListingRepo(db *sql.DB) *POSListingRepo { return &POSListingRepo{db: db} }

// ListByPerformance returns a performance's listings with their packs,
// optionally filtered by status.
func (r *POSListingRepo) ListByPerformance(ctx context.Context, performanceID string, status model.ListingStatus) ([]model.POSListing, error) {
	q := `SELECT pos_inventory_id, performance_id, status, parent_inventory_id, created_at, updated_at
	      FROM pos_listings WHERE performance_id = ?`
	args := []any{performanceID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at, pos_inventory_id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []model.POSListing
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			l      model.POSListing
			parent sql.NullString
		)
		if err := rows.Scan(&l.InventoryID, &l.PerformanceID, &l.Status, &parent, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.ParentInventoryID = parent.String
		index[l.InventoryID] = len(out)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, 0, len(out))
	for _, l := range out {
		ids = append(ids, l.InventoryID)
	}
	packRows, err := r.db.QueryContext(ctx,
		`SELECT pos_inventory_id, pack_id, ticket_ids FROM pos_listing_packs
		 WHERE pos_inventory_id IN (`+placeholders(len(ids))+`) ORDER BY pos_inventory_id, pack_id`, ids...)
	if err != nil {
		return nil, err
	}
	defer packRows.Close()
	for packRows.Next() {
		var (
			invID   string
			p       model.ListingPack
			tickets []byte
		)
		if err := packRows.Scan(&invID, &p.PackID, &tickets); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tickets, &p.TicketIDs); err != nil {
			return nil, fmt.Errorf("decode tickets of listing %s: %w", invID, err)
		}
		if i, ok := index[invID]; ok {
			out[i].Packs = append(out[i].Packs, p)
		}
	}
	return out, packRows.Err()
}

// InsertTx stores a new listing and its pack bindings.
func (r *POSListingRepo) InsertTx(ctx context.Context, tx *sql.Tx, l model.POSListing) error {
	status := l.Status
	if status == "" {
		status = model.ListingActive
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pos_listings (pos_inventory_id, performance_id, status, parent_inventory_id) VALUES (?, ?, ?, ?)`,
		l.InventoryID, l.PerformanceID, status, nullStr(l.ParentInventoryID)); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: listing %s", ErrConflict, l.InventoryID)
		}
		return err
	}
	if len(l.Packs) == 0 {
		return nil
	}
	vals := make([]string, 0, len(l.Packs))
	args := make([]any, 0, len(l.Packs)*3)
	for _, p := range l.Packs {
		tickets, err := json.Marshal(nonNil(p.TicketIDs))
		if err != nil {
			return err
		}
		vals = append(vals, "(?, ?, ?)")
		args = append(args, l.InventoryID, p.PackID, tickets)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pos_listing_packs (pos_inventory_id, pack_id, ticket_ids) VALUES `+strings.Join(vals, ", "), args...)
	return err
}

// SetStatusTx moves a listing to status.  Only ACTIVE listings move, so a
// replayed transition reports ErrNotFound instead of rewriting history.
func (r *POSListingRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, inventoryID string, status model.ListingStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE pos_listings SET status = ? WHERE pos_inventory_id = ? AND status = 'ACTIVE'`, status, inventoryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: active listing %s", ErrNotFound, inventoryID)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
