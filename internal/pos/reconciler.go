package pos

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

// Ledger is the local record of marketplace listings.  Each Apply call must
// be a single transaction for that listing.
type Ledger interface {
	ActiveListings(ctx context.Context, performanceID string) ([]model.POSListing, error)
	// ApplySplit marks old SPLIT, stores next as ACTIVE and marks the
	// dropped packs delisted.
	ApplySplit(ctx context.Context, old, next model.POSListing, dropped []string) error
	// ApplyDelist marks the listing INACTIVE and its packs delisted.
	ApplyDelist(ctx context.Context, listing model.POSListing) error
}

// Result counts what one reconciliation run did.  A listing in Errors was
// left untouched locally and is retried on the next run.
type Result struct {
	Split     int
	Delisted  int
	Unchanged int
	Errors    []model.ListingError
}

// Reconciler brings ACTIVE listings back in line with the surviving packs.
type Reconciler struct {
	client      Client
	ledger      Ledger
	concurrency int
	log         *zap.Logger
}

// NewReconciler returns a reconciler issuing at most concurrency POS calls
// at once.
func NewReconciler(client Client, ledger Ledger, concurrency int, log *zap.Logger) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{client: client, ledger: ledger, concurrency: concurrency, log: log}
}

type action int

const (
	actionNone action = iota
	actionSplit
	actionDelist
)

// Reconcile walks every ACTIVE listing of the performance.  surviving holds
// the ids of packs still active after the sync plan.  Per-listing failures
// are collected in the result; only failing to read the ledger is an error.
func (r *Reconciler) Reconcile(ctx context.Context, performanceID string, surviving map[string]bool) (Result, error) {
	listings, err := r.ledger.ActiveListings(ctx, performanceID)
	if err != nil {
		return Result{}, fmt.Errorf("load active listings: %w", err)
	}

	var (
		mu  sync.Mutex
		res Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, l := range listings {
		l := l
		g.Go(func() error {
			act, err := r.reconcileOne(gctx, l, surviving)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Warn("listing reconciliation failed",
					zap.String("performance_id", performanceID),
					zap.String("listing_id", l.InventoryID),
					zap.Error(err),
				)
				res.Errors = append(res.Errors, model.ListingError{ListingID: l.InventoryID, ErrorMessage: err.Error()})
				return nil
			}
			switch act {
			case actionSplit:
				res.Split++
			case actionDelist:
				res.Delisted++
			default:
				res.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].ListingID < res.Errors[j].ListingID })
	return res, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, l model.POSListing, surviving map[string]bool) (action, error) {
	var kept, dropped []model.ListingPack
	for _, p := range l.Packs {
		if surviving[p.PackID] {
			kept = append(kept, p)
		} else {
			dropped = append(dropped, p)
		}
	}

	switch {
	case len(dropped) == 0:
		return actionNone, nil

	case len(kept) == 0:
		if err := r.client.Delete(ctx, l.InventoryID); err != nil {
			return actionNone, err
		}
		if err := r.ledger.ApplyDelist(ctx, l); err != nil {
			return actionNone, fmt.Errorf("record delist: %w", err)
		}
		r.log.Info("listing delisted", zap.String("listing_id", l.InventoryID))
		return actionDelist, nil
	}

	var retain []string
	for _, p := range kept {
		retain = append(retain, p.TicketIDs...)
	}
	out, err := r.client.Split(ctx, l.InventoryID, retain)
	if err != nil {
		return actionNone, err
	}
	newID, _ := out.Retained()
	next := model.POSListing{
		InventoryID:       newID,
		PerformanceID:     l.PerformanceID,
		Status:            model.ListingActive,
		ParentInventoryID: l.InventoryID,
		Packs:             kept,
	}
	droppedIDs := make([]string, 0, len(dropped))
	for _, p := range dropped {
		droppedIDs = append(droppedIDs, p.PackID)
	}
	if err := r.ledger.ApplySplit(ctx, l, next, droppedIDs); err != nil {
		return actionNone, fmt.Errorf("record split: %w", err)
	}
	r.log.Info("listing split",
		zap.String("listing_id", l.InventoryID),
		zap.String("new_listing_id", newID),
		zap.Int("packs_dropped", len(droppedIDs)),
	)
	return actionSplit, nil
}
