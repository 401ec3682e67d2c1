package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// ErrUnknownRef is returned when a child in a snapshot points at a parent
// ref the snapshot does not contain.
var ErrUnknownRef = errors.New("identity: unknown parent reference")

// Allocator turns a computed base id into the id actually used, typically
// by claiming it in the store.  Parents are allocated before their children
// are hashed, so a suffixed parent id flows into the child's digest.
type Allocator func(ctx context.Context, entityType, baseID, fingerprint string) (string, error)

func keepBase(_ context.Context, _, baseID, _ string) (string, error) { return baseID, nil }

// Resolver computes ids for one source website.  It is stateless and safe
// for concurrent use.
type Resolver struct {
	prefix string
}

// NewResolver returns a resolver using prefix for every id.
func NewResolver(prefix string) Resolver {
	if prefix == "" {
		prefix = "src"
	}
	return Resolver{prefix: prefix}
}

// ForSnapshot returns the resolver for a snapshot: its explicit prefix when
// set, otherwise one derived from the source website.
func ForSnapshot(s *model.Snapshot) Resolver {
	if s.IDPrefix != "" {
		return NewResolver(s.IDPrefix)
	}
	return NewResolver(PrefixFor(s.SourceWebsite))
}

// Prefix returns the resolver's id prefix.
func (r Resolver) Prefix() string { return r.prefix }

// Canonical field orders.  Absent optional fields contribute "".

func VenueFields(v model.Venue) []string {
	return []string{v.Name, v.Address, v.City, v.State, v.PostalCode, v.Country}
}

func EventFields(e model.Event) []string {
	return []string{e.Name, e.Category}
}

func PerformanceFields(p model.Performance) []string {
	return []string{p.VenueID, p.EventID, formatTime(p.StartsAt), p.Name}
}

func LevelFields(l model.Level) []string {
	return []string{l.PerformanceID, l.Name, formatInt(l.Number)}
}

func ZoneFields(z model.Zone) []string {
	return []string{z.PerformanceID, z.Name, z.ZoneType}
}

func SectionFields(s model.Section) []string {
	return []string{s.PerformanceID, s.LevelID, s.ZoneID, s.Name}
}

func SeatFields(s model.Seat) []string {
	return []string{s.GroupID(), s.Row, s.Label}
}

func PackFields(p model.CandidatePack) []string {
	return []string{p.PerformanceID, p.SectionID, p.RowLabel, p.StartSeat, p.EndSeat}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (r Resolver) Venue(v model.Venue) string {
	return Resolve(r.prefix, TypeVenue, v.SourceID, VenueFields(v)...)
}

func (r Resolver) Event(e model.Event) string {
	return Resolve(r.prefix, TypeEvent, e.SourceID, EventFields(e)...)
}

func (r Resolver) Performance(p model.Performance) string {
	return Resolve(r.prefix, TypePerformance, p.SourceID, PerformanceFields(p)...)
}

func (r Resolver) Level(l model.Level) string {
	return Resolve(r.prefix, TypeLevel, l.SourceID, LevelFields(l)...)
}

func (r Resolver) Zone(z model.Zone) string {
	return Resolve(r.prefix, TypeZone, z.SourceID, ZoneFields(z)...)
}

func (r Resolver) Section(s model.Section) string {
	return Resolve(r.prefix, TypeSection, s.SourceID, SectionFields(s)...)
}

func (r Resolver) Seat(s model.Seat) string {
	return Resolve(r.prefix, TypeSeat, s.SourceID, SeatFields(s)...)
}

// Pack ids are always content-derived; packs have no upstream id.
func (r Resolver) Pack(p model.CandidatePack) string {
	return Resolve(r.prefix, TypePack, "", PackFields(p)...)
}

// ResolveSnapshot assigns internal ids to every entity of s in topological
// order: venue and event, then the performance, then levels and zones, then
// sections, then seats.  alloc may be nil for a pure pass.
func (r Resolver) ResolveSnapshot(ctx context.Context, s *model.Snapshot, alloc Allocator) error {
	if alloc == nil {
		alloc = keepBase
	}
	assign := func(entityType, sourceID string, fields []string) (string, error) {
		base := Resolve(r.prefix, entityType, sourceID, fields...)
		id, err := alloc(ctx, entityType, base, Fingerprint(sourceID, fields...))
		if err != nil {
			return "", fmt.Errorf("allocate %s %s: %w", entityType, base, err)
		}
		return id, nil
	}
	var err error

	s.Venue.SourceWebsite = s.SourceWebsite
	if s.Venue.InternalID, err = assign(TypeVenue, s.Venue.SourceID, VenueFields(s.Venue)); err != nil {
		return err
	}
	s.Event.SourceWebsite = s.SourceWebsite
	if s.Event.InternalID, err = assign(TypeEvent, s.Event.SourceID, EventFields(s.Event)); err != nil {
		return err
	}

	perf := &s.Performance
	perf.SourceWebsite = s.SourceWebsite
	perf.VenueID = s.Venue.InternalID
	perf.EventID = s.Event.InternalID
	if perf.InternalID, err = assign(TypePerformance, perf.SourceID, PerformanceFields(*perf)); err != nil {
		return err
	}

	levels := make(map[string]string, len(s.Levels))
	for i := range s.Levels {
		l := &s.Levels[i]
		l.SourceWebsite = s.SourceWebsite
		l.PerformanceID = perf.InternalID
		if l.InternalID, err = assign(TypeLevel, l.SourceID, LevelFields(*l)); err != nil {
			return err
		}
		if l.Ref != "" {
			levels[l.Ref] = l.InternalID
		}
	}
	zones := make(map[string]string, len(s.Zones))
	for i := range s.Zones {
		z := &s.Zones[i]
		z.SourceWebsite = s.SourceWebsite
		z.PerformanceID = perf.InternalID
		if z.InternalID, err = assign(TypeZone, z.SourceID, ZoneFields(*z)); err != nil {
			return err
		}
		if z.Ref != "" {
			zones[z.Ref] = z.InternalID
		}
	}

	sections := make(map[string]string, len(s.Sections))
	for i := range s.Sections {
		sec := &s.Sections[i]
		sec.SourceWebsite = s.SourceWebsite
		sec.PerformanceID = perf.InternalID
		if sec.LevelID, err = lookup(levels, "level", sec.LevelRef); err != nil {
			return fmt.Errorf("section %q: %w", sec.Name, err)
		}
		if sec.ZoneID, err = lookup(zones, "zone", sec.ZoneRef); err != nil {
			return fmt.Errorf("section %q: %w", sec.Name, err)
		}
		if sec.InternalID, err = assign(TypeSection, sec.SourceID, SectionFields(*sec)); err != nil {
			return err
		}
		if sec.Ref != "" {
			sections[sec.Ref] = sec.InternalID
		}
	}

	for i := range s.Seats {
		seat := &s.Seats[i]
		if seat.SectionID, err = lookup(sections, "section", seat.SectionRef); err != nil {
			return fmt.Errorf("seat %s%s: %w", seat.Row, seat.Label, err)
		}
		if seat.ZoneID, err = lookup(zones, "zone", seat.ZoneRef); err != nil {
			return fmt.Errorf("seat %s%s: %w", seat.Row, seat.Label, err)
		}
		if seat.InternalID, err = assign(TypeSeat, seat.SourceID, SeatFields(*seat)); err != nil {
			return err
		}
	}
	return nil
}

func lookup(ids map[string]string, kind, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	id, ok := ids[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrUnknownRef, kind, ref)
	}
	return id, nil
}
