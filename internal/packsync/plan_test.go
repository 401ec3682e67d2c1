package packsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

func candidate(row, start, end string, price int64) model.CandidatePack {
	return model.CandidatePack{
		PerformanceID:  "perf",
		SectionID:      "S1",
		RowLabel:       row,
		StartSeat:      start,
		EndSeat:        end,
		UnitPriceCents: price,
		PriceCents:     price,
	}
}

func active(id string, c model.CandidatePack) model.SeatPack {
	c.InternalID = id
	return model.SeatPack{CandidatePack: c, Status: model.PackActive, POSStatus: model.POSSynced}
}

// apply mimics the persistence boundary so a second pass sees the result.
func apply(prev []model.SeatPack, p Plan) []model.SeatPack {
	var next []model.SeatPack
	for _, k := range p.Keep {
		sp := k.Pack
		sp.PriceCents = k.Candidate.PriceCents
		sp.UnitPriceCents = k.Candidate.UnitPriceCents
		next = append(next, sp)
	}
	for i, c := range p.Create {
		next = append(next, active("new"+string(rune('a'+i)), c))
	}
	return next
}

func TestPlanPartialOverlapRetiresAndCreates(t *testing.T) {
	prior := []model.SeatPack{active("p1", candidate("A", "A1", "A3", 3000))}
	plan := New().Plan(prior, []model.CandidatePack{candidate("A", "A1", "A2", 2000)})

	require.Len(t, plan.Retire, 1)
	assert.Equal(t, "p1", plan.Retire[0].InternalID)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, "A2", plan.Create[0].EndSeat)
	assert.Empty(t, plan.Keep)
	assert.False(t, plan.Empty())
}

func TestPlanIsIdempotent(t *testing.T) {
	prior := []model.SeatPack{
		active("p1", candidate("A", "A1", "A3", 3000)),
		active("p2", candidate("B", "B4", "B5", 2000)),
	}
	cands := []model.CandidatePack{
		candidate("A", "A1", "A3", 3300),
		candidate("C", "C1", "C1", 900),
	}
	s := New()

	first := s.Plan(prior, cands)
	assert.False(t, first.Empty())
	assert.Len(t, first.PriceUpdates(), 1)

	second := s.Plan(apply(prior, first), cands)
	assert.True(t, second.Empty())
	assert.Len(t, second.Keep, 2)

	assert.Equal(t, second, s.Plan(apply(prior, first), cands))
}

func TestPlanPriceOnlyChangeKeepsPack(t *testing.T) {
	prior := []model.SeatPack{active("p1", candidate("A", "A1", "A3", 3000))}
	plan := New().Plan(prior, []model.CandidatePack{candidate("A", "A1", "A3", 4500)})

	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Retire)
	require.Len(t, plan.PriceUpdates(), 1)
	assert.Equal(t, int64(4500), plan.PriceUpdates()[0].Candidate.PriceCents)
	assert.Equal(t, map[string]bool{"p1": true}, plan.Surviving())
}

func TestPlanQualifiesRowsBySection(t *testing.T) {
	left := candidate("A", "1", "4", 100)
	right := candidate("A", "1", "4", 100)
	right.SectionID = "S2"

	plan := New().Plan([]model.SeatPack{active("p1", left)}, []model.CandidatePack{right})
	assert.Len(t, plan.Create, 1)
	assert.Len(t, plan.Retire, 1)
}

func TestPlanIgnoresInactiveAndDuplicates(t *testing.T) {
	retired := active("old", candidate("A", "A1", "A3", 3000))
	retired.Status = model.PackInactive
	c := candidate("A", "A1", "A3", 3000)

	plan := New().Plan([]model.SeatPack{retired}, []model.CandidatePack{c, c})
	assert.Len(t, plan.Create, 1)
	assert.Empty(t, plan.Retire)
}

func TestPlanEmptyInputs(t *testing.T) {
	assert.True(t, New().Plan(nil, nil).Empty())

	plan := New().Plan([]model.SeatPack{active("p1", candidate("A", "1", "2", 1))}, nil)
	assert.Len(t, plan.Retire, 1)
}

func TestSurvivingIncludesCreatedPacks(t *testing.T) {
	back := candidate("A", "A1", "A3", 3000)
	back.InternalID = "p-back"
	fresh := candidate("B", "B1", "B2", 1000)

	plan := New().Plan([]model.SeatPack{active("p1", candidate("C", "C1", "C4", 500))},
		[]model.CandidatePack{back, fresh, candidate("C", "C1", "C4", 500)})

	require.Len(t, plan.Create, 2)
	assert.Equal(t, map[string]bool{"p1": true, "p-back": true}, plan.Surviving())
}
