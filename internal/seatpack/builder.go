// Package seatpack turns raw per-seat availability into sellable seat packs:
// maximal runs of contiguous, attribute-homogeneous available seats in one
// row.  Everything here is pure and safe for concurrent use.
package seatpack

import (
	"sort"
	"strconv"
	"strings"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// Compatible decides whether cur may extend a run whose last seat is prev.
// Contiguity of seat numbers is checked separately.
type Compatible func(prev, cur model.Seat) bool

// SameAttributes is the default break rule: a run splits whenever the price,
// price tier, accessibility flag or view type changes.
func SameAttributes(prev, cur model.Seat) bool {
	return prev.PriceCents == cur.PriceCents &&
		prev.PriceTier == cur.PriceTier &&
		prev.Accessible == cur.Accessible &&
		prev.ViewType == cur.ViewType
}

// Builder builds candidate packs.
type Builder struct {
	compatible Compatible
}

// Option configures a Builder.
type Option func(*Builder)

// WithCompatible replaces the attribute break rule.
func WithCompatible(c Compatible) Option {
	return func(b *Builder) {
		if c != nil {
			b.compatible = c
		}
	}
}

// NewBuilder returns a Builder using SameAttributes unless overridden.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{compatible: SameAttributes}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GenerateSeatPacks implements Generator.
func (b *Builder) GenerateSeatPacks(seats []model.Seat, _ []model.Section, performance model.Performance) []model.CandidatePack {
	return b.Build(performance.InternalID, seats)
}

type groupKey struct {
	group string
	row   string
}

type orderedSeat struct {
	seat    model.Seat
	number  int
	numeric bool
}

// Build groups available seats by (section or zone, row), orders each row by
// seat number and cuts it into runs.  Unavailable seats are ignored; seats
// without a row land in the "ungrouped" row.  The result is ordered by
// group, row and position.
func (b *Builder) Build(performanceID string, seats []model.Seat) []model.CandidatePack {
	groups := make(map[groupKey][]orderedSeat)
	for _, s := range seats {
		if !s.Available {
			continue
		}
		row := strings.TrimSpace(s.Row)
		if row == "" {
			row = model.UngroupedRow
		}
		n, ok := seatNumber(s.Label)
		k := groupKey{group: s.GroupID(), row: row}
		groups[k] = append(groups[k], orderedSeat{seat: s, number: n, numeric: ok})
	}
	if len(groups) == 0 {
		return []model.CandidatePack{}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].group != keys[j].group {
			return keys[i].group < keys[j].group
		}
		return keys[i].row < keys[j].row
	})

	var packs []model.CandidatePack
	for _, k := range keys {
		row := groups[k]
		sort.SliceStable(row, func(i, j int) bool { return seatLess(row[i], row[j]) })
		start := 0
		for i := 1; i <= len(row); i++ {
			if i < len(row) && b.extends(row[i-1], row[i]) {
				continue
			}
			packs = append(packs, newPack(performanceID, k, row[start:i]))
			start = i
		}
	}
	return packs
}

func (b *Builder) extends(prev, cur orderedSeat) bool {
	if !prev.numeric || !cur.numeric {
		return false
	}
	return cur.number == prev.number+1 && b.compatible(prev.seat, cur.seat)
}

func newPack(performanceID string, k groupKey, run []orderedSeat) model.CandidatePack {
	first := run[0].seat
	p := model.CandidatePack{
		PerformanceID:  performanceID,
		SectionID:      k.group,
		RowLabel:       k.row,
		StartSeat:      first.Label,
		EndSeat:        run[len(run)-1].seat.Label,
		PackSize:       len(run),
		UnitPriceCents: first.PriceCents,
		PriceTier:      first.PriceTier,
		Accessible:     first.Accessible,
		ViewType:       first.ViewType,
		Seats:          make([]string, 0, len(run)),
	}
	for _, s := range run {
		p.PriceCents += s.seat.PriceCents
		p.Seats = append(p.Seats, s.seat.Label)
	}
	return p
}

// seatLess orders numeric labels by number, then non-numeric labels
// lexically after them.
func seatLess(a, b orderedSeat) bool {
	switch {
	case a.numeric && b.numeric:
		if a.number != b.number {
			return a.number < b.number
		}
		return a.seat.Label < b.seat.Label
	case a.numeric != b.numeric:
		return a.numeric
	}
	return a.seat.Label < b.seat.Label
}

// seatNumber extracts the digits of a seat label ("A12" -> 12, "101b" ->
// 101).  Labels without digits, or with too many to fit, are non-numeric.
func seatNumber(label string) (int, bool) {
	var digits strings.Builder
	for _, r := range label {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 || digits.Len() > 18 {
		return 0, false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return n, true
}
