package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

func TestResolveSourceIDWins(t *testing.T) {
	a := Resolve("tm", TypeVenue, "V123", "Main St Arena", "1 Main St")
	b := Resolve("tm", TypeVenue, "V123", "Completely different", "content")
	assert.Equal(t, "tm_venue_V123", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "tm_venue_V123", Resolve("tm", TypeVenue, "  V123 ", "x"))
}

func TestResolveFallsBackToContentHash(t *testing.T) {
	for _, src := range []string{"", "   ", "0", " 0 "} {
		id := Resolve("tm", TypeVenue, src, "Main St Arena")
		require.True(t, strings.HasPrefix(id, "tm_venue_"), id)
		assert.Len(t, strings.TrimPrefix(id, "tm_venue_"), 8)
	}
}

func TestResolveIgnoresCaseAndWhitespace(t *testing.T) {
	a := Resolve("tm", TypeVenue, "", "Main St", "", "Springfield")
	b := Resolve("tm", TypeVenue, "", " main st ", "", "SPRINGFIELD  ")
	assert.Equal(t, a, b)
}

func TestResolveIsOrderSensitiveAndStable(t *testing.T) {
	a := Resolve("tm", TypeEvent, "", "Hamlet", "theatre")
	b := Resolve("tm", TypeEvent, "", "theatre", "Hamlet")
	assert.NotEqual(t, a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a, Resolve("tm", TypeEvent, "", "Hamlet", "theatre"))
	}
	// Field boundaries are part of the digest.
	assert.NotEqual(t, ContentHash("ab", "c"), ContentHash("a", "bc"))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "src:V1", Fingerprint(" V1 ", "ignored"))
	fp := Fingerprint("", "Main St")
	assert.True(t, strings.HasPrefix(fp, "sha:"))
	assert.Equal(t, fp, Fingerprint("0", " MAIN ST"))
	assert.Len(t, fp, len("sha:")+64)
}

func TestPrefixFor(t *testing.T) {
	assert.Equal(t, "exampletickets", PrefixFor("https://www.example-tickets.co.uk/"))
	assert.Equal(t, "boxoffice", PrefixFor("boxoffice.com"))
	assert.Equal(t, "src", PrefixFor(""))
}

func sampleSnapshot() *model.Snapshot {
	return &model.Snapshot{
		SourceWebsite: "https://www.boxoffice.com",
		Venue:         model.Venue{Name: "Grand Hall", City: "Leeds"},
		Event:         model.Event{Name: "Hamlet", Category: "theatre"},
		Performance:   model.Performance{StartsAt: time.Date(2026, 11, 1, 19, 30, 0, 0, time.UTC)},
		Levels:        []model.Level{{Ref: "L1", Name: "Stalls", Number: 1}},
		Zones:         []model.Zone{{Ref: "Z1", Name: "Premium"}},
		Sections:      []model.Section{{Ref: "S1", Name: "Left", LevelRef: "L1", ZoneRef: "Z1"}},
		Seats: []model.Seat{
			{SectionRef: "S1", Row: "A", Label: "1", Available: true},
			{SectionRef: "S1", Row: "A", Label: "2", Available: true},
		},
	}
}

func TestResolveSnapshotBottomUp(t *testing.T) {
	s := sampleSnapshot()
	r := ForSnapshot(s)
	require.NoError(t, r.ResolveSnapshot(context.Background(), s, nil))

	assert.Equal(t, "boxoffice", r.Prefix())
	assert.Equal(t, s.Venue.InternalID, s.Performance.VenueID)
	assert.Equal(t, s.Event.InternalID, s.Performance.EventID)
	assert.Equal(t, s.Performance.InternalID, s.Levels[0].PerformanceID)
	assert.Equal(t, s.Levels[0].InternalID, s.Sections[0].LevelID)
	assert.Equal(t, s.Zones[0].InternalID, s.Sections[0].ZoneID)
	assert.Equal(t, s.Sections[0].InternalID, s.Seats[0].SectionID)
	assert.NotEqual(t, s.Seats[0].InternalID, s.Seats[1].InternalID)

	again := sampleSnapshot()
	require.NoError(t, ForSnapshot(again).ResolveSnapshot(context.Background(), again, nil))
	assert.Equal(t, s.Seats[1].InternalID, again.Seats[1].InternalID)
	assert.Equal(t, s.Performance.InternalID, again.Performance.InternalID)
}

func TestResolveSnapshotPropagatesAllocatedParentIDs(t *testing.T) {
	plain := sampleSnapshot()
	require.NoError(t, ForSnapshot(plain).ResolveSnapshot(context.Background(), plain, nil))

	suffixed := sampleSnapshot()
	alloc := func(_ context.Context, entityType, base, _ string) (string, error) {
		if entityType == TypeVenue {
			return base + "_1", nil
		}
		return base, nil
	}
	require.NoError(t, ForSnapshot(suffixed).ResolveSnapshot(context.Background(), suffixed, alloc))
	assert.Equal(t, plain.Venue.InternalID+"_1", suffixed.Venue.InternalID)
	assert.NotEqual(t, plain.Performance.InternalID, suffixed.Performance.InternalID)
}

func TestResolveSnapshotUnknownRef(t *testing.T) {
	s := sampleSnapshot()
	s.Seats[0].SectionRef = "missing"
	err := ForSnapshot(s).ResolveSnapshot(context.Background(), s, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRef))
}

func TestAllocate(t *testing.T) {
	taken := map[string]string{"x_pack_aaaa": "other", "x_pack_aaaa_1": "other"}
	claim := func(fp string) ClaimFunc {
		return func(_ context.Context, id string) (bool, error) {
			owner, ok := taken[id]
			if !ok {
				taken[id] = fp
				return true, nil
			}
			return owner == fp, nil
		}
	}

	id, err := Allocate(context.Background(), "x_pack_aaaa", 5, claim("mine"))
	require.NoError(t, err)
	assert.Equal(t, "x_pack_aaaa_2", id)

	// Same entity lands on the same id again.
	id, err = Allocate(context.Background(), "x_pack_aaaa", 5, claim("mine"))
	require.NoError(t, err)
	assert.Equal(t, "x_pack_aaaa_2", id)

	_, err = Allocate(context.Background(), "x_pack_aaaa", 2, claim("third"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollisionBudget)
}
