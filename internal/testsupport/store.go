// Package testsupport provides in-memory stand-ins for the MySQL store and
// the marketplace so the pipeline can be tested without either.
package testsupport

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seatpack-sync/internal/identity"
	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/packsync"
	"github.com/iliyamo/seatpack-sync/internal/repository"
)

// MemoryStore mirrors repository.Store in memory.  Each method holds the
// store mutex for its whole body, which gives it the same all-or-nothing
// effect as the SQL transactions.
type MemoryStore struct {
	mu sync.Mutex

	owners       map[string]string // type/id -> fingerprint
	performances map[string]model.Performance
	packs        map[string]model.SeatPack
	listings     map[string]model.POSListing
	jobs         map[string]model.ScrapeJob
	seq          int // insertion order for pending packs
	order        map[string]int

	// Failure injection; a non-nil error is returned by the named method.
	FailSaveSnapshot error
	FailSyncPacks    error
	FailApply        error // ApplySplit and ApplyDelist

	SyncPacksCalls int
	Now            func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		owners:       make(map[string]string),
		performances: make(map[string]model.Performance),
		packs:        make(map[string]model.SeatPack),
		listings:     make(map[string]model.POSListing),
		jobs:         make(map[string]model.ScrapeJob),
		order:        make(map[string]int),
		Now:          time.Now,
	}
}

// SaveSnapshot resolves ids with the same fingerprint claim rule as the SQL
// store.  Ids claimed by a failed pass are discarded.
func (m *MemoryStore) SaveSnapshot(ctx context.Context, s *model.Snapshot, resolver identity.Resolver, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaveSnapshot != nil {
		return m.FailSaveSnapshot
	}
	pass := make(map[string]string)
	alloc := func(ctx context.Context, entityType, baseID, fingerprint string) (string, error) {
		return identity.Allocate(ctx, baseID, maxAttempts, func(_ context.Context, candidate string) (bool, error) {
			key := entityType + "/" + candidate
			owner, ok := pass[key]
			if !ok {
				owner, ok = m.owners[key]
			}
			if !ok {
				owner = fingerprint
			}
			pass[key] = owner
			return owner == fingerprint, nil
		})
	}
	if err := resolver.ResolveSnapshot(ctx, s, alloc); err != nil {
		return err
	}
	for k, v := range pass {
		m.owners[k] = v
	}
	m.performances[s.Performance.InternalID] = s.Performance
	return nil
}

// Claim pre-registers an id with a foreign fingerprint to force collisions.
func (m *MemoryStore) Claim(entityType, id, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[entityType+"/"+id] = fingerprint
}

// SaveJob upserts a job.
func (m *MemoryStore) SaveJob(_ context.Context, job model.ScrapeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// Job returns a job by id.
func (m *MemoryStore) Job(_ context.Context, id string) (model.ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return model.ScrapeJob{}, repository.ErrNotFound
	}
	return j, nil
}

// Jobs returns every stored job.
func (m *MemoryStore) Jobs() []model.ScrapeJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ScrapeJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// SyncPacks applies the plan decide returns with the SQL store's rules:
// retire, reprice, then reactivate or insert.
func (m *MemoryStore) SyncPacks(ctx context.Context, performanceID, sourceWebsite, jobID string, maxAttempts int,
	decide func(active []model.SeatPack) packsync.Plan) (packsync.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncPacksCalls++
	if m.FailSyncPacks != nil {
		return packsync.Plan{}, m.FailSyncPacks
	}

	var active []model.SeatPack
	for _, p := range m.packs {
		if p.PerformanceID == performanceID && p.SourceWebsite == sourceWebsite && p.Status == model.PackActive {
			active = append(active, p)
		}
	}
	plan := decide(active)
	now := m.Now().UTC()
	saved, savedOrder, savedSeq := maps.Clone(m.packs), maps.Clone(m.order), m.seq

	for _, p := range plan.Retire {
		cur := m.packs[p.InternalID]
		cur.Status, cur.ScrapeJobID, cur.UpdatedAt = model.PackInactive, jobID, now
		m.packs[p.InternalID] = cur
	}
	for _, k := range plan.PriceUpdates() {
		cur := m.packs[k.Pack.InternalID]
		cur.UnitPriceCents, cur.PriceCents = k.Candidate.UnitPriceCents, k.Candidate.PriceCents
		cur.ScrapeJobID, cur.UpdatedAt = jobID, now
		m.packs[k.Pack.InternalID] = cur
	}
	for i := range plan.Create {
		id, err := m.create(ctx, sourceWebsite, jobID, plan.Create[i], maxAttempts, now)
		if err != nil {
			m.packs, m.order, m.seq = saved, savedOrder, savedSeq
			return packsync.Plan{}, err
		}
		plan.Create[i].InternalID = id
	}
	return plan, nil
}

func (m *MemoryStore) create(ctx context.Context, site, jobID string, c model.CandidatePack, maxAttempts int, now time.Time) (string, error) {
	for id, p := range m.packs {
		if p.PerformanceID == c.PerformanceID && p.Key() == c.Key() {
			cand := c
			cand.InternalID = id
			p.CandidatePack = cand
			p.Status = model.PackActive
			if l, ok := m.listings[p.POSListingID]; !ok || l.Status != model.ListingActive {
				p.POSStatus, p.POSListingID = model.POSPending, ""
			}
			p.ScrapeJobID, p.UpdatedAt = jobID, now
			m.packs[id] = p
			return id, nil
		}
	}
	if c.InternalID == "" {
		return "", fmt.Errorf("pack %s has no base id", c.Key())
	}
	id, err := identity.Allocate(ctx, c.InternalID, maxAttempts, func(_ context.Context, candidate string) (bool, error) {
		_, taken := m.packs[candidate]
		return !taken, nil
	})
	if err != nil {
		return "", err
	}
	c.InternalID = id
	m.packs[id] = model.SeatPack{
		CandidatePack: c,
		SourceWebsite: site,
		Status:        model.PackActive,
		POSStatus:     model.POSPending,
		ScrapeJobID:   jobID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.seq++
	m.order[id] = m.seq
	return id, nil
}

// PutPack stores a pack as is.
func (m *MemoryStore) PutPack(p model.SeatPack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.order[p.InternalID]; !ok {
		m.seq++
		m.order[p.InternalID] = m.seq
	}
	m.packs[p.InternalID] = p
}

// Pack returns a pack by id.
func (m *MemoryStore) Pack(id string) (model.SeatPack, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[id]
	return p, ok
}

// PutListing stores a listing as is.
func (m *MemoryStore) PutListing(l model.POSListing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.InventoryID] = l
}

// Listing returns a listing by inventory id.
func (m *MemoryStore) Listing(id string) (model.POSListing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	return l, ok
}

// ActiveListings implements pos.Ledger.
func (m *MemoryStore) ActiveListings(_ context.Context, performanceID string) ([]model.POSListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listingsLocked(performanceID, model.ListingActive), nil
}

func (m *MemoryStore) listingsLocked(performanceID string, status model.ListingStatus) []model.POSListing {
	var out []model.POSListing
	for _, l := range m.listings {
		if l.PerformanceID == performanceID && (status == "" || l.Status == status) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InventoryID < out[j].InventoryID })
	return out
}

// ApplySplit implements pos.Ledger.
func (m *MemoryStore) ApplySplit(_ context.Context, old, next model.POSListing, dropped []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailApply != nil {
		return m.FailApply
	}
	if err := m.setStatusLocked(old.InventoryID, model.ListingSplit); err != nil {
		return err
	}
	m.listings[next.InventoryID] = next
	for _, id := range next.PackIDs() {
		if p, ok := m.packs[id]; ok {
			p.POSListingID = next.InventoryID
			m.packs[id] = p
		}
	}
	m.delistLocked(dropped)
	return nil
}

// ApplyDelist implements pos.Ledger.
func (m *MemoryStore) ApplyDelist(_ context.Context, listing model.POSListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailApply != nil {
		return m.FailApply
	}
	if err := m.setStatusLocked(listing.InventoryID, model.ListingInactive); err != nil {
		return err
	}
	m.delistLocked(listing.PackIDs())
	return nil
}

func (m *MemoryStore) setStatusLocked(id string, status model.ListingStatus) error {
	l, ok := m.listings[id]
	if !ok || l.Status != model.ListingActive {
		return repository.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = m.Now().UTC()
	m.listings[id] = l
	return nil
}

func (m *MemoryStore) delistLocked(ids []string) {
	for _, id := range ids {
		if p, ok := m.packs[id]; ok {
			p.POSStatus = model.POSDelisted
			m.packs[id] = p
		}
	}
}

// PendingPacks returns active packs waiting to be listed, in insertion
// order.
func (m *MemoryStore) PendingPacks(_ context.Context, limit int) ([]model.SeatPack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SeatPack
	for _, p := range m.packs {
		if p.Status == model.PackActive && p.POSStatus == model.POSPending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].InternalID] < m.order[out[j].InternalID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordPublished stores the listing and marks the pack synced.
func (m *MemoryStore) RecordPublished(_ context.Context, packID string, listing model.POSListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[packID]
	if !ok {
		return repository.ErrNotFound
	}
	m.listings[listing.InventoryID] = listing
	p.POSStatus, p.POSListingID = model.POSSynced, listing.InventoryID
	m.packs[packID] = p
	return nil
}

// ListPacks returns a performance's packs ordered by key.
func (m *MemoryStore) ListPacks(_ context.Context, performanceID string, status model.PackStatus) ([]model.SeatPack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SeatPack
	for _, p := range m.packs {
		if p.PerformanceID == performanceID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

// ListListings returns every listing of a performance.
func (m *MemoryStore) ListListings(_ context.Context, performanceID string) ([]model.POSListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listingsLocked(performanceID, ""), nil
}

// Performance returns a stored performance.
func (m *MemoryStore) Performance(_ context.Context, id string) (model.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.performances[id]
	if !ok {
		return model.Performance{}, repository.ErrNotFound
	}
	return p, nil
}
