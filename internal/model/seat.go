package model

// Level is a tier of the seating plan (stalls, dress circle, upper tier).
// Ref is a snapshot-local handle that children use to point at their parent;
// it is never persisted.
type Level struct {
	Ref           string `json:"ref,omitempty"`
	InternalID    string `json:"internal_id,omitempty"`    // levels.internal_id
	SourceID      string `json:"source_id,omitempty"`      // levels.source_id
	SourceWebsite string `json:"source_website,omitempty"` // levels.source_website
	PerformanceID string `json:"performance_id,omitempty"` // levels.performance_id
	Name          string `json:"name"`                     // levels.name
	Number        int    `json:"number,omitempty"`         // levels.number
}

// Zone is a pricing or general-admission area that may cut across levels.
type Zone struct {
	Ref           string `json:"ref,omitempty"`
	InternalID    string `json:"internal_id,omitempty"`    // zones.internal_id
	SourceID      string `json:"source_id,omitempty"`      // zones.source_id
	SourceWebsite string `json:"source_website,omitempty"` // zones.source_website
	PerformanceID string `json:"performance_id,omitempty"` // zones.performance_id
	Name          string `json:"name"`                     // zones.name
	ZoneType      string `json:"zone_type,omitempty"`      // zones.zone_type
}

// Section groups rows of seats.  It belongs to a level, a zone, or both.
type Section struct {
	Ref           string `json:"ref,omitempty"`
	InternalID    string `json:"internal_id,omitempty"`    // sections.internal_id
	SourceID      string `json:"source_id,omitempty"`      // sections.source_id
	SourceWebsite string `json:"source_website,omitempty"` // sections.source_website
	PerformanceID string `json:"performance_id,omitempty"` // sections.performance_id
	LevelRef      string `json:"level_ref,omitempty"`
	ZoneRef       string `json:"zone_ref,omitempty"`
	LevelID       string `json:"level_id,omitempty"` // sections.level_id (nullable)
	ZoneID        string `json:"zone_id,omitempty"`  // sections.zone_id (nullable)
	Name          string `json:"name"`               // sections.name
}

// Seat is one per-seat availability record from a scrape.  Row and Label are
// kept exactly as the site renders them; PriceCents is already marked up by
// the pricing collaborator.
type Seat struct {
	InternalID    string `json:"internal_id,omitempty"` // seats.internal_id
	SourceID      string `json:"source_id,omitempty"`   // seats.source_id
	SectionRef    string `json:"section_ref,omitempty"`
	ZoneRef       string `json:"zone_ref,omitempty"`
	SectionID     string `json:"section_id,omitempty"`  // seats.section_id (nullable)
	ZoneID        string `json:"zone_id,omitempty"`     // seats.zone_id (nullable)
	Row           string `json:"row"`                   // seats.row_label
	Label         string `json:"seat"`                  // seats.seat_label
	PriceCents    int64  `json:"price_cents"`           // per-seat price
	PriceTier     string `json:"price_tier,omitempty"`  // site price band
	Available     bool   `json:"available"`             // false when sold or held upstream
	Accessible    bool   `json:"accessible,omitempty"`  // wheelchair / companion seat
	ViewType      string `json:"view_type,omitempty"`   // e.g. restricted, side
}

// GroupID is the id of the section, or the zone when the seat has no
// section, that the seat's row belongs to.
func (s Seat) GroupID() string {
	switch {
	case s.SectionID != "":
		return s.SectionID
	case s.ZoneID != "":
		return s.ZoneID
	case s.SectionRef != "":
		return s.SectionRef
	}
	return s.ZoneRef
}
