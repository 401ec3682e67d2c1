package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/repository"
)

// PackReader is the read side of the store used by ops dashboards.
type PackReader interface {
	Performance(ctx context.Context, id string) (model.Performance, error)
	ListPacks(ctx context.Context, performanceID string, status model.PackStatus) ([]model.SeatPack, error)
	ListListings(ctx context.Context, performanceID string) ([]model.POSListing, error)
}

// PackHandler serves pack and listing views of a performance.
type PackHandler struct {
	Store PackReader
}

func NewPackHandler(store PackReader) *PackHandler { return &PackHandler{Store: store} }

type packsResp struct {
	Performance model.Performance `json:"performance"`
	Packs       []model.SeatPack  `json:"packs"`
}

type listingsResp struct {
	Performance model.Performance  `json:"performance"`
	Listings    []model.POSListing `json:"listings"`
}

// ListPacks handles GET /v1/performances/:id/packs?status=active|inactive.
func (h *PackHandler) ListPacks(c echo.Context) error {
	status := model.PackStatus(c.QueryParam("status"))
	if status != "" && status != model.PackActive && status != model.PackInactive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be active or inactive"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	perf, err := h.Store.Performance(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "performance not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load performance"})
	}
	packs, err := h.Store.ListPacks(ctx, perf.InternalID, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load packs"})
	}
	if packs == nil {
		packs = []model.SeatPack{}
	}
	return c.JSON(http.StatusOK, packsResp{Performance: perf, Packs: packs})
}

// ListListings handles GET /v1/performances/:id/listings.
func (h *PackHandler) ListListings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	perf, err := h.Store.Performance(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "performance not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load performance"})
	}
	listings, err := h.Store.ListListings(ctx, perf.InternalID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load listings"})
	}
	if listings == nil {
		listings = []model.POSListing{}
	}
	return c.JSON(http.StatusOK, listingsResp{Performance: perf, Listings: listings})
}
