// Package packsync diffs the active seat packs of a performance against the
// candidate packs of its newest scrape.  The diff is decided on pack
// composition alone, so a price change never causes create/retire churn.
package packsync

import (
	"sort"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// Kept is a pack present both locally and in the new scrape.
type Kept struct {
	Pack      model.SeatPack
	Candidate model.CandidatePack
}

// PriceChanged reports whether the kept pack must be repriced in place.
func (k Kept) PriceChanged() bool {
	return k.Pack.PriceCents != k.Candidate.PriceCents ||
		k.Pack.UnitPriceCents != k.Candidate.UnitPriceCents
}

// Plan is the create/keep/retire decision for one performance.  It executes
// nothing; persistence and the POS reconciler both consume it.
type Plan struct {
	Create []model.CandidatePack
	Keep   []Kept
	Retire []model.SeatPack
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Retire) == 0 && len(p.PriceUpdates()) == 0
}

// PriceUpdates returns the kept packs whose price moved.
func (p Plan) PriceUpdates() []Kept {
	var out []Kept
	for _, k := range p.Keep {
		if k.PriceChanged() {
			out = append(out, k)
		}
	}
	return out
}

// Surviving returns the internal ids of every pack whose key is in the new
// scrape, kept and created alike.  A created pack may be a retired one
// coming back while its old listing is still live, so it must count as a
// survivor.  Create entries need the id the store assigned; entries
// without one are skipped.
func (p Plan) Surviving() map[string]bool {
	ids := make(map[string]bool, len(p.Keep)+len(p.Create))
	for _, k := range p.Keep {
		ids[k.Pack.InternalID] = true
	}
	for _, c := range p.Create {
		if c.InternalID != "" {
			ids[c.InternalID] = true
		}
	}
	return ids
}

// Synchronizer computes plans.  It holds no state and is safe for
// concurrent use; serializing passes per performance is the caller's job.
type Synchronizer struct{}

// New returns a Synchronizer.
func New() *Synchronizer { return &Synchronizer{} }

// Plan diffs active (P) against candidates (C) by pack key:
// create = C - P, retire = P - C, keep = C ∩ P.  Duplicate candidate keys
// collapse to the first occurrence.  Every slice of the result is sorted by
// key so equal inputs always give equal plans.
func (s *Synchronizer) Plan(active []model.SeatPack, candidates []model.CandidatePack) Plan {
	current := make(map[model.PackKey]model.SeatPack, len(active))
	for _, p := range active {
		if p.Status != "" && p.Status != model.PackActive {
			continue
		}
		current[p.Key()] = p
	}

	var plan Plan
	seen := make(map[model.PackKey]bool, len(candidates))
	for _, c := range candidates {
		k := c.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		if p, ok := current[k]; ok {
			plan.Keep = append(plan.Keep, Kept{Pack: p, Candidate: c})
			continue
		}
		plan.Create = append(plan.Create, c)
	}
	for k, p := range current {
		if !seen[k] {
			plan.Retire = append(plan.Retire, p)
		}
	}

	sort.Slice(plan.Create, func(i, j int) bool { return keyLess(plan.Create[i].Key(), plan.Create[j].Key()) })
	sort.Slice(plan.Keep, func(i, j int) bool { return keyLess(plan.Keep[i].Pack.Key(), plan.Keep[j].Pack.Key()) })
	sort.Slice(plan.Retire, func(i, j int) bool { return keyLess(plan.Retire[i].Key(), plan.Retire[j].Key()) })
	return plan
}

func keyLess(a, b model.PackKey) bool {
	if a.SectionID != b.SectionID {
		return a.SectionID < b.SectionID
	}
	if a.RowLabel != b.RowLabel {
		return a.RowLabel < b.RowLabel
	}
	if a.StartSeat != b.StartSeat {
		return a.StartSeat < b.StartSeat
	}
	return a.EndSeat < b.EndSeat
}
