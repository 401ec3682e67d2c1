package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/testsupport"
)

func TestPublishPendingListsEachPack(t *testing.T) {
	h := newHarness(t, SyncOptions{})
	ctx := context.Background()
	sum, err := h.svc.Process(ctx, testsupport.Snapshot(5000, 1, 2, 3, 5))
	require.NoError(t, err)

	pub := NewPublisher(h.store, h.market, nil)
	res, err := pub.PublishPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.Zero(t, res.Failed)
	require.Len(t, h.market.Created, 2)
	assert.Equal(t, []string{"1", "2", "3"}, h.market.Created[0].Seats)
	assert.Equal(t, int64(5000), h.market.Created[0].UnitCostCents)
	assert.Equal(t, 3, h.market.Created[0].TicketCount)

	for _, p := range h.packs(t, sum.PerformanceID, model.PackActive) {
		assert.Equal(t, model.POSSynced, p.POSStatus)
		require.NotEmpty(t, p.POSListingID)
		l, ok := h.store.Listing(p.POSListingID)
		require.True(t, ok)
		assert.Equal(t, model.ListingActive, l.Status)
		assert.Equal(t, []string{p.InternalID}, l.PackIDs())
		assert.Len(t, l.Packs[0].TicketIDs, p.PackSize)
	}

	// Nothing left to publish.
	res, err = pub.PublishPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Published)
}

func TestPublishPendingLeavesFailuresPending(t *testing.T) {
	h := newHarness(t, SyncOptions{})
	ctx := context.Background()
	sum, err := h.svc.Process(ctx, testsupport.Snapshot(5000, 1, 2, 3, 5))
	require.NoError(t, err)
	active := h.packs(t, sum.PerformanceID, model.PackActive)
	h.market.SetFail(active[1].InternalID, errors.New("422 invalid section"))

	res, err := NewPublisher(h.store, h.market, nil).PublishPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, active[1].InternalID, res.Errors[0].ListingID)

	p, _ := h.store.Pack(active[1].InternalID)
	assert.Equal(t, model.POSPending, p.POSStatus)
}

func TestPublishPendingHonoursLimit(t *testing.T) {
	h := newHarness(t, SyncOptions{})
	ctx := context.Background()
	_, err := h.svc.Process(ctx, testsupport.Snapshot(5000, 1, 3, 5))
	require.NoError(t, err)

	res, err := NewPublisher(h.store, h.market, nil).PublishPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.Len(t, h.market.Created, 2)
}

func TestRetiredPackReappearsPending(t *testing.T) {
	h := newHarness(t, SyncOptions{})
	ctx := context.Background()
	first, err := h.svc.Process(ctx, testsupport.Snapshot(5000, 1, 2))
	require.NoError(t, err)
	_, err = NewPublisher(h.store, h.market, nil).PublishPending(ctx, 10)
	require.NoError(t, err)
	id := h.packs(t, first.PerformanceID, model.PackActive)[0].InternalID

	_, err = h.svc.Process(ctx, testsupport.Snapshot(5000))
	require.NoError(t, err)
	sum, err := h.svc.Process(ctx, testsupport.Snapshot(5000, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PacksCreated)

	p, ok := h.store.Pack(id)
	require.True(t, ok)
	assert.Equal(t, model.PackActive, p.Status)
	assert.Equal(t, model.POSPending, p.POSStatus)
	assert.Empty(t, p.POSListingID)
	assert.Len(t, h.packs(t, first.PerformanceID, ""), 1)
}
