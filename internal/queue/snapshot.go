package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/service"
)

// SnapshotProcessor runs one snapshot through the sync pipeline.
type SnapshotProcessor interface {
	Process(ctx context.Context, snap *model.Snapshot) (*model.SyncSummary, error)
}

// SnapshotHandler decodes scrape.completed messages and processes them.
// Undecodable and invalid snapshots are permanent failures; anything else
// (database down, entity write failed) is worth one redelivery.
func SnapshotHandler(p SnapshotProcessor) Handler {
	return func(ctx context.Context, body []byte) error {
		var snap model.Snapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return Permanent(fmt.Errorf("decode snapshot: %w", err))
		}
		_, err := p.Process(ctx, &snap)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return Permanent(err)
		}
		return err
	}
}
