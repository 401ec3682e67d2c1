package model

import (
	"strings"
	"time"
)

// PackStatus is the local lifecycle state of a seat pack.
type PackStatus string

const (
	PackActive   PackStatus = "active"
	PackInactive PackStatus = "inactive"
)

// POSStatus tracks a pack's state on the marketplace side.
type POSStatus string

const (
	POSPending  POSStatus = "pending"
	POSSynced   POSStatus = "synced"
	POSDelisted POSStatus = "delisted"
)

// UngroupedRow is the row label used for seats scraped without one.
const UngroupedRow = "ungrouped"

// PackKey identifies a pack inside its performance.  Row labels repeat across
// sections, so the row is qualified by the section (or zone) id.
type PackKey struct {
	SectionID string
	RowLabel  string
	StartSeat string
	EndSeat   string
}

func (k PackKey) String() string {
	return k.SectionID + "/" + k.RowLabel + "/" + k.StartSeat + "-" + k.EndSeat
}

// CandidatePack is one maximal run of contiguous, attribute-homogeneous
// available seats produced from a single scrape.
type CandidatePack struct {
	InternalID     string   `json:"internal_id,omitempty"`
	PerformanceID  string   `json:"performance_id"`
	SectionID      string   `json:"section_id"`
	RowLabel       string   `json:"row_label"`
	StartSeat      string   `json:"start_seat"`
	EndSeat        string   `json:"end_seat"`
	PackSize       int      `json:"pack_size"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	PriceCents     int64    `json:"price_cents"` // aggregate over the run
	PriceTier      string   `json:"price_tier,omitempty"`
	Accessible     bool     `json:"accessible,omitempty"`
	ViewType       string   `json:"view_type,omitempty"`
	Seats          []string `json:"seats"` // seat labels in run order
}

// Key returns the pack's composition key.
func (p CandidatePack) Key() PackKey {
	return PackKey{SectionID: p.SectionID, RowLabel: p.RowLabel, StartSeat: p.StartSeat, EndSeat: p.EndSeat}
}

// Label renders the pack the way ops read it, e.g. "A1-A3".
func (p CandidatePack) Label() string {
	return strings.TrimSpace(p.RowLabel + " " + p.StartSeat + "-" + p.EndSeat)
}

// SeatPack is the persisted form of a pack.  Rows are never deleted: a pack
// that disappears from a later scrape becomes inactive, a pack that comes
// back is reactivated in place.
type SeatPack struct {
	CandidatePack
	SourceWebsite string     `json:"source_website"` // seat_packs.source_website
	Status        PackStatus `json:"status"`         // seat_packs.status
	POSStatus     POSStatus  `json:"pos_status"`     // seat_packs.pos_status
	POSListingID  string     `json:"pos_listing_id,omitempty"`
	ScrapeJobID   string     `json:"scrape_job_id,omitempty"` // last job that touched the row
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
