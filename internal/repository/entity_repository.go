package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/seatpack-sync/internal/identity"
	"github.com/iliyamo/seatpack-sync/internal/model"
)

// entityTables maps identity entity types to their tables.  Every table has
// internal_id as primary key and a fingerprint column holding the full
// digest, which is what tells "same entity" apart from an 8-hex collision.
var entityTables = map[string]string{
	identity.TypeVenue:       "venues",
	identity.TypeEvent:       "events",
	identity.TypePerformance: "performances",
	identity.TypeLevel:       "levels",
	identity.TypeZone:        "zones",
	identity.TypeSection:     "sections",
	identity.TypeSeat:        "seats",
}

// EntityRepo persists the venue/event/performance/seating graph of a
// snapshot.
type EntityRepo struct {
	db *sql.DB
}

// NewEntityRepo returns a new EntityRepo bound to the provided database.
func NewEntityRepo(db *sql.DB) *EntityRepo { return &EntityRepo{db: db} }

// claimer allocates internal ids inside one transaction.  Existing rows are
// locked with FOR UPDATE so the fingerprint check and the later upsert see
// the same owner; ids claimed earlier in the same pass are memoized because
// their rows are not written until the whole graph is resolved.
type claimer struct {
	tx          *sql.Tx
	maxAttempts int
	owners      map[string]string // table/id -> fingerprint
}

func (c *claimer) allocate(ctx context.Context, entityType, baseID, fingerprint string) (string, error) {
	table, ok := entityTables[entityType]
	if !ok {
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
	return identity.Allocate(ctx, baseID, c.maxAttempts, func(ctx context.Context, candidate string) (bool, error) {
		key := table + "/" + candidate
		if owner, ok := c.owners[key]; ok {
			return owner == fingerprint, nil
		}
		var owner string
		err := c.tx.QueryRowContext(ctx,
			"SELECT fingerprint FROM "+table+" WHERE internal_id = ? FOR UPDATE", candidate).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			owner = fingerprint
		case err != nil:
			return false, err
		}
		c.owners[key] = owner
		return owner == fingerprint, nil
	})
}

// SaveSnapshotTx resolves every id of s and upserts the entity graph within
// the caller's transaction.  Either the whole graph is written or, on any
// error, nothing is once the caller rolls back.
func (r *EntityRepo) SaveSnapshotTx(ctx context.Context, tx *sql.Tx, s *model.Snapshot, resolver identity.Resolver, maxAttempts int) error {
	c := &claimer{tx: tx, maxAttempts: maxAttempts, owners: make(map[string]string)}
	if err := resolver.ResolveSnapshot(ctx, s, c.allocate); err != nil {
		return err
	}

	v := s.Venue
	if err := upsert(ctx, tx, "venues",
		[]string{"internal_id", "fingerprint", "source_id", "source_website", "name", "address", "city", "state", "postal_code", "country"},
		v.InternalID, identity.Fingerprint(v.SourceID, identity.VenueFields(v)...), nullStr(v.SourceID), v.SourceWebsite,
		v.Name, v.Address, v.City, v.State, v.PostalCode, v.Country,
	); err != nil {
		return err
	}

	e := s.Event
	if err := upsert(ctx, tx, "events",
		[]string{"internal_id", "fingerprint", "source_id", "source_website", "name", "category"},
		e.InternalID, identity.Fingerprint(e.SourceID, identity.EventFields(e)...), nullStr(e.SourceID), e.SourceWebsite,
		e.Name, e.Category,
	); err != nil {
		return err
	}

	p := s.Performance
	if err := upsert(ctx, tx, "performances",
		[]string{"internal_id", "fingerprint", "source_id", "source_website", "venue_id", "event_id", "name", "starts_at"},
		p.InternalID, identity.Fingerprint(p.SourceID, identity.PerformanceFields(p)...), nullStr(p.SourceID), p.SourceWebsite,
		p.VenueID, p.EventID, p.Name, p.StartsAt.UTC(),
	); err != nil {
		return err
	}

	for _, l := range s.Levels {
		if err := upsert(ctx, tx, "levels",
			[]string{"internal_id", "fingerprint", "source_id", "source_website", "performance_id", "name", "number"},
			l.InternalID, identity.Fingerprint(l.SourceID, identity.LevelFields(l)...), nullStr(l.SourceID), l.SourceWebsite,
			l.PerformanceID, l.Name, l.Number,
		); err != nil {
			return err
		}
	}
	for _, z := range s.Zones {
		if err := upsert(ctx, tx, "zones",
			[]string{"internal_id", "fingerprint", "source_id", "source_website", "performance_id", "name", "zone_type"},
			z.InternalID, identity.Fingerprint(z.SourceID, identity.ZoneFields(z)...), nullStr(z.SourceID), z.SourceWebsite,
			z.PerformanceID, z.Name, z.ZoneType,
		); err != nil {
			return err
		}
	}
	for _, sec := range s.Sections {
		if err := upsert(ctx, tx, "sections",
			[]string{"internal_id", "fingerprint", "source_id", "source_website", "performance_id", "level_id", "zone_id", "name"},
			sec.InternalID, identity.Fingerprint(sec.SourceID, identity.SectionFields(sec)...), nullStr(sec.SourceID), sec.SourceWebsite,
			sec.PerformanceID, nullStr(sec.LevelID), nullStr(sec.ZoneID), sec.Name,
		); err != nil {
			return err
		}
	}
	for _, st := range s.Seats {
		if err := upsert(ctx, tx, "seats",
			[]string{"internal_id", "fingerprint", "source_id", "performance_id", "section_id", "zone_id", "row_label", "seat_label",
				"price_cents", "price_tier", "available", "accessible", "view_type"},
			st.InternalID, identity.Fingerprint(st.SourceID, identity.SeatFields(st)...), nullStr(st.SourceID), p.InternalID,
			nullStr(st.SectionID), nullStr(st.ZoneID), st.Row, st.Label,
			st.PriceCents, st.PriceTier, st.Available, st.Accessible, st.ViewType,
		); err != nil {
			return err
		}
	}
	return nil
}

// upsert writes one row keyed by its first column.  The claimer has already
// checked that an existing row carries the same fingerprint, so updating
// every other column in place is safe.
func upsert(ctx context.Context, tx *sql.Tx, table string, cols []string, args ...any) error {
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = VALUES("+c+")")
	}
	q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) +
		") ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s %v", ErrConflict, table, args[0])
		}
		return fmt.Errorf("upsert %s %v: %w", table, args[0], err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Performance fetches a performance by internal id.
func (r *EntityRepo) Performance(ctx context.Context, id string) (model.Performance, error) {
	var (
		p        model.Performance
		sourceID sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT internal_id, source_id, source_website, venue_id, event_id, name, starts_at
		 FROM performances WHERE internal_id = ?`, id).Scan(
		&p.InternalID, &sourceID, &p.SourceWebsite, &p.VenueID, &p.EventID, &p.Name, &p.StartsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Performance{}, ErrNotFound
	}
	if err != nil {
		return model.Performance{}, err
	}
	p.SourceID = sourceID.String
	return p, nil
}
