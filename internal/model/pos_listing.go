package model

import "time"

// ListingStatus is the ledger state of a marketplace listing.
type ListingStatus string

const (
	ListingActive   ListingStatus = "ACTIVE"
	ListingSplit    ListingStatus = "SPLIT"
	ListingInactive ListingStatus = "INACTIVE"
)

// ListingPack binds one seat pack to a listing together with the POS ticket
// ids that represent its seats.
type ListingPack struct {
	PackID    string   `json:"pack_id"`
	TicketIDs []string `json:"ticket_ids"`
}

// POSListing is the local ledger row mirroring one marketplace inventory
// record.
type POSListing struct {
	InventoryID       string        `json:"pos_inventory_id"`              // pos_listings.pos_inventory_id
	PerformanceID     string        `json:"performance_id"`                // pos_listings.performance_id
	Status            ListingStatus `json:"status"`                        // pos_listings.status
	ParentInventoryID string        `json:"parent_inventory_id,omitempty"` // set on listings created by a split
	Packs             []ListingPack `json:"packs"`                         // pos_listing_packs rows
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// PackIDs returns the ids of the packs the listing covers.
func (l POSListing) PackIDs() []string {
	ids := make([]string, 0, len(l.Packs))
	for _, p := range l.Packs {
		ids = append(ids, p.PackID)
	}
	return ids
}
