package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seatpack-sync/internal/logging"
	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/pos"
)

// PublishStore is the persistence the publish sweep needs.
type PublishStore interface {
	PendingPacks(ctx context.Context, limit int) ([]model.SeatPack, error)
	RecordPublished(ctx context.Context, packID string, listing model.POSListing) error
}

// PublishResult counts what one sweep did.
type PublishResult struct {
	Published int                  `json:"published"`
	Failed    int                  `json:"failed"`
	Errors    []model.ListingError `json:"errors"`
}

// Publisher pushes pending packs to the marketplace, one listing per pack.
type Publisher struct {
	store  PublishStore
	client pos.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewPublisher returns a publish sweep over store and client.
func NewPublisher(store PublishStore, client pos.Client, log *zap.Logger) *Publisher {
	return &Publisher{store: store, client: client, log: logging.Component(log, "publisher"), now: time.Now}
}

// PublishPending lists up to limit pending packs.  A pack whose create or
// bookkeeping fails stays pending and is picked up by the next sweep.
func (p *Publisher) PublishPending(ctx context.Context, limit int) (PublishResult, error) {
	res := PublishResult{Errors: []model.ListingError{}}
	packs, err := p.store.PendingPacks(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("load pending packs: %w", err)
	}
	for _, pk := range packs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := p.publishOne(ctx, pk); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, model.ListingError{ListingID: pk.InternalID, ErrorMessage: err.Error()})
			p.log.Warn("publish pack failed", zap.String(logging.FieldPackID, pk.InternalID), zap.Error(err))
			continue
		}
		res.Published++
	}
	return res, nil
}

func (p *Publisher) publishOne(ctx context.Context, pk model.SeatPack) error {
	inv, err := p.client.CreateInventory(ctx, pos.InventoryRequest{
		ExternalRef:   pk.InternalID,
		PerformanceID: pk.PerformanceID,
		Section:       pk.SectionID,
		Row:           pk.RowLabel,
		Seats:         pk.Seats,
		UnitCostCents: pk.UnitPriceCents,
		TicketCount:   pk.PackSize,
	})
	if err != nil {
		return err
	}
	now := p.now().UTC()
	listing := model.POSListing{
		InventoryID:   inv.ID,
		PerformanceID: pk.PerformanceID,
		Status:        model.ListingActive,
		Packs:         []model.ListingPack{{PackID: pk.InternalID, TicketIDs: inv.TicketIDs}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.store.RecordPublished(ctx, pk.InternalID, listing); err != nil {
		return fmt.Errorf("record listing %s: %w", inv.ID, err)
	}
	p.log.Info("pack listed",
		zap.String(logging.FieldPackID, pk.InternalID),
		zap.String(logging.FieldListingID, inv.ID),
		zap.Bool("broadcast", inv.Broadcast))
	return nil
}
