package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seatpack-sync/internal/logging"
	"github.com/iliyamo/seatpack-sync/internal/middleware"
	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/scrape"
	"github.com/iliyamo/seatpack-sync/internal/service"
)

// SnapshotProcessor runs one snapshot through the sync pipeline.
type SnapshotProcessor interface {
	Process(ctx context.Context, snap *model.Snapshot) (*model.SyncSummary, error)
}

// ScrapeHandler accepts snapshots pushed by extraction workers.
type ScrapeHandler struct {
	Sync    SnapshotProcessor
	Timeout time.Duration
	Log     *zap.Logger
}

// NewScrapeHandler returns a handler; timeout bounds one pipeline run.
func NewScrapeHandler(sync SnapshotProcessor, timeout time.Duration, log *zap.Logger) *ScrapeHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ScrapeHandler{Sync: sync, Timeout: timeout, Log: logging.Component(log, "api")}
}

// Ingest handles POST /v1/scrapes.  The response body is the run summary;
// an invalid snapshot answers 422 with the problems found.
func (h *ScrapeHandler) Ingest(c echo.Context) error {
	var snap model.Snapshot
	if err := c.Bind(&snap); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	sum, err := h.Sync.Process(ctx, &snap)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    "invalid snapshot",
			"problems": reported(verr.Problems),
			"summary":  sum,
		})
	case err != nil:
		h.Log.Error("ingest failed",
			zap.String("subject", middleware.Subject(c)),
			zap.String(logging.FieldSourceWebsite, snap.SourceWebsite),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed", "summary": sum})
	}
	return c.JSON(http.StatusOK, sum)
}

func reported(errs []scrape.Error) []scrape.ReportedError {
	out := make([]scrape.ReportedError, 0, len(errs))
	for _, e := range errs {
		out = append(out, scrape.ReportedError{Kind: e.Kind, Message: e.Message, Fatal: true})
	}
	return out
}
