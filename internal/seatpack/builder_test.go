package seatpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

func seat(section, row, label string, price int64) model.Seat {
	return model.Seat{SectionID: section, Row: row, Label: label, PriceCents: price, Available: true}
}

func labels(packs []model.CandidatePack) []string {
	out := make([]string, 0, len(packs))
	for _, p := range packs {
		out = append(out, p.StartSeat+"-"+p.EndSeat)
	}
	return out
}

func TestBuildSplitsOnGaps(t *testing.T) {
	seats := []model.Seat{
		seat("S1", "A", "A5", 1000),
		seat("S1", "A", "A2", 1000),
		seat("S1", "A", "A1", 1000),
		seat("S1", "A", "A3", 1000),
	}
	packs := NewBuilder().Build("perf", seats)
	require.Len(t, packs, 2)

	assert.Equal(t, "A1", packs[0].StartSeat)
	assert.Equal(t, "A3", packs[0].EndSeat)
	assert.Equal(t, 3, packs[0].PackSize)
	assert.Equal(t, []string{"A1", "A2", "A3"}, packs[0].Seats)
	assert.Equal(t, int64(3000), packs[0].PriceCents)
	assert.Equal(t, int64(1000), packs[0].UnitPriceCents)

	assert.Equal(t, "A5", packs[1].StartSeat)
	assert.Equal(t, "A5", packs[1].EndSeat)
	assert.Equal(t, 1, packs[1].PackSize)
	assert.Equal(t, "perf", packs[1].PerformanceID)
	assert.Equal(t, "S1", packs[1].SectionID)
}

func TestBuildSplitsOnAttributeChange(t *testing.T) {
	s3 := seat("S1", "B", "3", 1000)
	s3.Accessible = true
	s4 := seat("S1", "B", "4", 1500)
	seats := []model.Seat{seat("S1", "B", "1", 1000), seat("S1", "B", "2", 1000), s3, s4}

	packs := NewBuilder().Build("perf", seats)
	assert.Equal(t, []string{"1-2", "3-3", "4-4"}, labels(packs))
	assert.True(t, packs[1].Accessible)
}

func TestBuildCustomCompatibility(t *testing.T) {
	seats := []model.Seat{seat("S1", "B", "1", 1000), seat("S1", "B", "2", 1500)}
	ignorePrice := WithCompatible(func(prev, cur model.Seat) bool { return prev.ViewType == cur.ViewType })

	packs := NewBuilder(ignorePrice).Build("perf", seats)
	require.Len(t, packs, 1)
	assert.Equal(t, int64(2500), packs[0].PriceCents)
	assert.Equal(t, int64(1000), packs[0].UnitPriceCents)
}

func TestBuildGroupsBySectionAndRow(t *testing.T) {
	seats := []model.Seat{
		seat("S2", "A", "1", 500),
		seat("S1", "B", "1", 500),
		seat("S1", "A", "2", 500),
		seat("S1", "A", "1", 500),
	}
	packs := NewBuilder().Build("perf", seats)
	require.Len(t, packs, 3)
	assert.Equal(t, model.PackKey{SectionID: "S1", RowLabel: "A", StartSeat: "1", EndSeat: "2"}, packs[0].Key())
	assert.Equal(t, "B", packs[1].RowLabel)
	assert.Equal(t, "S2", packs[2].SectionID)
}

func TestBuildEdgeCases(t *testing.T) {
	assert.Empty(t, NewBuilder().Build("perf", nil))

	single := NewBuilder().Build("perf", []model.Seat{seat("S1", "C", "7", 100)})
	require.Len(t, single, 1)
	assert.Equal(t, 1, single[0].PackSize)

	sold := seat("S1", "C", "8", 100)
	sold.Available = false
	assert.Len(t, NewBuilder().Build("perf", []model.Seat{seat("S1", "C", "7", 100), sold}), 1)

	noRow := NewBuilder().Build("perf", []model.Seat{seat("S1", " ", "1", 100), seat("S1", "", "2", 100)})
	require.Len(t, noRow, 1)
	assert.Equal(t, model.UngroupedRow, noRow[0].RowLabel)
	assert.Equal(t, 2, noRow[0].PackSize)
}

func TestBuildNonNumericLabels(t *testing.T) {
	seats := []model.Seat{
		seat("S1", "BOX", "left", 100),
		seat("S1", "BOX", "2", 100),
		seat("S1", "BOX", "centre", 100),
		seat("S1", "BOX", "1", 100),
	}
	packs := NewBuilder().Build("perf", seats)
	assert.Equal(t, []string{"1-2", "centre-centre", "left-left"}, labels(packs))
}

func TestRegistryRoutesBySite(t *testing.T) {
	custom := generatorFunc(func(seats []model.Seat, _ []model.Section, p model.Performance) []model.CandidatePack {
		return []model.CandidatePack{{PerformanceID: p.InternalID, RowLabel: "custom"}}
	})
	reg := NewRegistry(nil).Register("https://www.oddseats.com", custom)

	out := reg.For("oddseats.com").GenerateSeatPacks(nil, nil, model.Performance{InternalID: "p"})
	require.Len(t, out, 1)
	assert.Equal(t, "custom", out[0].RowLabel)

	_, isBuilder := reg.For("other.com").(*Builder)
	assert.True(t, isBuilder)
}

type generatorFunc func([]model.Seat, []model.Section, model.Performance) []model.CandidatePack

func (f generatorFunc) GenerateSeatPacks(s []model.Seat, sec []model.Section, p model.Performance) []model.CandidatePack {
	return f(s, sec, p)
}
