package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatpack-sync/internal/handler"
	"github.com/iliyamo/seatpack-sync/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// API bundles the handlers behind /v1.
type API struct {
	Scrapes *handler.ScrapeHandler
	Packs   *handler.PackHandler
	Publish *handler.PublishHandler
}

// Extras are optional middlewares; nil entries are skipped.
type Extras struct {
	RateLimit echo.MiddlewareFunc // every /v1 route
	Cache     echo.MiddlewareFunc // read routes only
}

// RegisterAPI registers the authenticated /v1 routes.  Workers may only push
// snapshots; operators may also read and trigger publish sweeps.
func RegisterAPI(e *echo.Echo, api API, jwtSecret string, extras Extras) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	if extras.RateLimit != nil {
		v1.Use(extras.RateLimit)
	}

	if api.Scrapes != nil {
		v1.POST("/scrapes", api.Scrapes.Ingest, middleware.RequireRole(middleware.RoleWorker, middleware.RoleOperator))
	}

	ops := middleware.RequireRole(middleware.RoleOperator)
	if api.Packs != nil {
		read := []echo.MiddlewareFunc{ops}
		if extras.Cache != nil {
			read = append(read, extras.Cache)
		}
		v1.GET("/performances/:id/packs", api.Packs.ListPacks, read...)
		v1.GET("/performances/:id/listings", api.Packs.ListListings, read...)
	}
	if api.Publish != nil {
		v1.POST("/pos/publish", api.Publish.Publish, ops)
	}
}
