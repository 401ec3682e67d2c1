package pos

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

type fakeClient struct {
	mu       sync.Mutex
	splits   map[string][]string
	deletes  []string
	failFor  map[string]error
	notFound map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{splits: map[string][]string{}, failFor: map[string]error{}, notFound: map[string]bool{}}
}

func (f *fakeClient) CreateInventory(context.Context, InventoryRequest) (Inventory, error) {
	return Inventory{}, errors.New("not used")
}

func (f *fakeClient) Split(_ context.Context, id string, retain []string) (SplitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[id]; err != nil {
		return SplitResult{}, err
	}
	f.splits[id] = retain
	return SplitResult{NewInventoryIDs: []string{id + "-r"}}, nil
}

func (f *fakeClient) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[id]; err != nil {
		return err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	listings map[string]model.POSListing
	delisted map[string]bool
}

func newFakeLedger(ls ...model.POSListing) *fakeLedger {
	l := &fakeLedger{listings: map[string]model.POSListing{}, delisted: map[string]bool{}}
	for _, x := range ls {
		l.listings[x.InventoryID] = x
	}
	return l
}

func (l *fakeLedger) ActiveListings(_ context.Context, perf string) ([]model.POSListing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.POSListing
	for _, x := range l.listings {
		if x.PerformanceID == perf && x.Status == model.ListingActive {
			out = append(out, x)
		}
	}
	return out, nil
}

func (l *fakeLedger) ApplySplit(_ context.Context, old, next model.POSListing, dropped []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	old.Status = model.ListingSplit
	l.listings[old.InventoryID] = old
	l.listings[next.InventoryID] = next
	for _, id := range dropped {
		l.delisted[id] = true
	}
	return nil
}

func (l *fakeLedger) ApplyDelist(_ context.Context, x model.POSListing) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	x.Status = model.ListingInactive
	l.listings[x.InventoryID] = x
	for _, p := range x.Packs {
		l.delisted[p.PackID] = true
	}
	return nil
}

func listing(id string, packs ...string) model.POSListing {
	l := model.POSListing{InventoryID: id, PerformanceID: "perf", Status: model.ListingActive}
	for _, p := range packs {
		l.Packs = append(l.Packs, model.ListingPack{PackID: p, TicketIDs: []string{p + "-t"}})
	}
	return l
}

func TestReconcileSplitsPartialSurvivors(t *testing.T) {
	client := newFakeClient()
	ledger := newFakeLedger(listing("inv", "A1-A2", "A3"))

	res, err := NewReconciler(client, ledger, 2, nil).Reconcile(context.Background(), "perf", map[string]bool{"A1-A2": true})
	require.NoError(t, err)
	assert.Equal(t, Result{Split: 1}, res)

	assert.Len(t, client.splits, 1)
	assert.Equal(t, []string{"A1-A2-t"}, client.splits["inv"])
	assert.Empty(t, client.deletes)

	assert.Equal(t, model.ListingSplit, ledger.listings["inv"].Status)
	next := ledger.listings["inv-r"]
	assert.Equal(t, model.ListingActive, next.Status)
	assert.Equal(t, "inv", next.ParentInventoryID)
	assert.Equal(t, []string{"A1-A2"}, next.PackIDs())
	assert.True(t, ledger.delisted["A3"])
}

func TestReconcileDelistsWhenNothingSurvives(t *testing.T) {
	client := newFakeClient()
	ledger := newFakeLedger(listing("inv", "A1-A3"))

	res, err := NewReconciler(client, ledger, 1, nil).Reconcile(context.Background(), "perf", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Delisted: 1}, res)
	assert.Equal(t, []string{"inv"}, client.deletes)
	assert.Empty(t, client.splits)
	assert.Equal(t, model.ListingInactive, ledger.listings["inv"].Status)
	assert.True(t, ledger.delisted["A1-A3"])
}

func TestReconcileLeavesUnchangedListingsAlone(t *testing.T) {
	client := newFakeClient()
	ledger := newFakeLedger(listing("inv", "p1", "p2"), listing("empty"))

	res, err := NewReconciler(client, ledger, 4, nil).Reconcile(context.Background(), "perf", map[string]bool{"p1": true, "p2": true})
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 2}, res)
	assert.Empty(t, client.splits)
	assert.Empty(t, client.deletes)
}

func TestReconcileIsolatesFailures(t *testing.T) {
	client := newFakeClient()
	client.failFor["bad"] = &APIError{Op: "delete", StatusCode: 500, Body: "boom"}
	ledger := newFakeLedger(listing("bad", "x"), listing("good", "y"), listing("split", "z", "keep"))

	res, err := NewReconciler(client, ledger, 3, nil).Reconcile(context.Background(), "perf", map[string]bool{"keep": true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delisted)
	assert.Equal(t, 1, res.Split)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].ListingID)
	assert.Contains(t, res.Errors[0].ErrorMessage, "boom")

	// The failed listing is untouched and picked up again next run.
	assert.Equal(t, model.ListingActive, ledger.listings["bad"].Status)
	assert.False(t, ledger.delisted["x"])

	delete(client.failFor, "bad")
	res, err = NewReconciler(client, ledger, 3, nil).Reconcile(context.Background(), "perf", map[string]bool{"keep": true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delisted)
	assert.Equal(t, 1, res.Unchanged)
	assert.Empty(t, res.Errors)
}

func TestReconcileTimeoutLeavesListingActive(t *testing.T) {
	client := newFakeClient()
	client.failFor["inv"] = context.DeadlineExceeded
	ledger := newFakeLedger(listing("inv", "gone"))

	res, err := NewReconciler(client, ledger, 1, nil).Reconcile(context.Background(), "perf", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Delisted)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ListingActive, ledger.listings["inv"].Status)
}
