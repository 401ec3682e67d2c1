package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatpack-sync/internal/service"
)

// PendingPublisher runs the publish sweep.
type PendingPublisher interface {
	PublishPending(ctx context.Context, limit int) (service.PublishResult, error)
}

// PublishHandler lets operators trigger a publish sweep.
type PublishHandler struct {
	Publisher PendingPublisher
	Batch     int // default and maximum ?limit
}

func NewPublishHandler(p PendingPublisher, batch int) *PublishHandler {
	if batch <= 0 {
		batch = 50
	}
	return &PublishHandler{Publisher: p, Batch: batch}
}

// Publish handles POST /v1/pos/publish?limit=N.
func (h *PublishHandler) Publish(c echo.Context) error {
	limit := h.Batch
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = min(n, h.Batch)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	res, err := h.Publisher.PublishPending(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "publish failed", "result": res})
	}
	return c.JSON(http.StatusOK, res)
}
