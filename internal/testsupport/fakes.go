package testsupport

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/pos"
)

// FakePOS is an in-memory marketplace.  Calls are counted per inventory id
// so tests can assert that a split or delete happened exactly once.
type FakePOS struct {
	mu sync.Mutex

	seq     int
	Created []pos.InventoryRequest
	Splits  map[string][]string // inventory id -> retained ticket ids
	Deletes map[string]int

	// Errors keyed by inventory id (split, delete) or external ref (create).
	Fail map[string]error
}

// NewFakePOS returns an empty marketplace.
func NewFakePOS() *FakePOS {
	return &FakePOS{Splits: make(map[string][]string), Deletes: make(map[string]int), Fail: make(map[string]error)}
}

// CreateInventory issues one ticket id per seat.
func (f *FakePOS) CreateInventory(_ context.Context, req pos.InventoryRequest) (pos.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[req.ExternalRef]; err != nil {
		return pos.Inventory{}, err
	}
	f.seq++
	id := fmt.Sprintf("inv-%d", f.seq)
	tickets := make([]string, 0, len(req.Seats))
	for _, s := range req.Seats {
		tickets = append(tickets, id+":"+s)
	}
	f.Created = append(f.Created, req)
	return pos.Inventory{ID: id, Broadcast: true, TicketIDs: tickets}, nil
}

// Split answers with a fresh id for the retained tickets.
func (f *FakePOS) Split(_ context.Context, inventoryID string, retain []string) (pos.SplitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[inventoryID]; err != nil {
		return pos.SplitResult{}, err
	}
	f.seq++
	f.Splits[inventoryID] = append([]string(nil), retain...)
	return pos.SplitResult{NewInventoryIDs: []string{fmt.Sprintf("inv-%d", f.seq), inventoryID + "-rest"}}, nil
}

// Delete records the delete.
func (f *FakePOS) Delete(_ context.Context, inventoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[inventoryID]; err != nil {
		return err
	}
	f.Deletes[inventoryID]++
	return nil
}

// SetFail makes calls for key return err; nil clears it.
func (f *FakePOS) SetFail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, key)
		return
	}
	f.Fail[key] = err
}

// SplitCount returns how many splits were issued.
func (f *FakePOS) SplitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Splits)
}

// DeleteCount returns how many deletes were issued.
func (f *FakePOS) DeleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Deletes {
		n += c
	}
	return n
}

// SummaryRecorder is a summary publisher that keeps what it was given.
type SummaryRecorder struct {
	mu  sync.Mutex
	got []model.SyncSummary
	Err error
}

// PublishSummary records s and returns Err.
func (r *SummaryRecorder) PublishSummary(_ context.Context, s model.SyncSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	return r.Err
}

// Summaries returns everything published so far.
func (r *SummaryRecorder) Summaries() []model.SyncSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SyncSummary(nil), r.got...)
}
