package seatpack

import (
	"github.com/iliyamo/seatpack-sync/internal/identity"
	"github.com/iliyamo/seatpack-sync/internal/model"
)

// Generator is the capability every site integration provides for turning
// its seats into candidate packs.  Sites with unusual seat maps (paired
// boxes, odd/even numbering) plug in their own.
type Generator interface {
	GenerateSeatPacks(seats []model.Seat, sections []model.Section, performance model.Performance) []model.CandidatePack
}

// Registry routes a source website to its Generator.  It is built once at
// startup and handed to the pipeline; it is not safe to Register while the
// pipeline is running.
type Registry struct {
	routes   map[string]Generator
	fallback Generator
}

// NewRegistry returns a registry that falls back to fallback, or to the
// default Builder when fallback is nil.
func NewRegistry(fallback Generator) *Registry {
	if fallback == nil {
		fallback = NewBuilder()
	}
	return &Registry{routes: make(map[string]Generator), fallback: fallback}
}

// Register binds a site to a generator.  Sites are matched on their
// normalized name, so "https://www.site.com" and "site.com" are the same.
func (r *Registry) Register(sourceWebsite string, g Generator) *Registry {
	r.routes[identity.PrefixFor(sourceWebsite)] = g
	return r
}

// For returns the generator for a site.
func (r *Registry) For(sourceWebsite string) Generator {
	if g, ok := r.routes[identity.PrefixFor(sourceWebsite)]; ok {
		return g
	}
	return r.fallback
}
