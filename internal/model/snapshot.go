package model

import "github.com/iliyamo/seatpack-sync/internal/scrape"

// Snapshot is the full, independent result of scraping one performance.
// Nothing in it is assumed stable across runs except content.
type Snapshot struct {
	SourceWebsite string        `json:"source_website"`
	IDPrefix      string        `json:"id_prefix,omitempty"`
	Venue         Venue         `json:"venue"`
	Event         Event         `json:"event"`
	Performance   Performance   `json:"performance"`
	Levels        []Level       `json:"levels,omitempty"`
	Zones         []Zone        `json:"zones,omitempty"`
	Sections      []Section     `json:"sections,omitempty"`
	Seats         []Seat        `json:"seats,omitempty"`
	Outcome       scrape.Report `json:"outcome"`
}
