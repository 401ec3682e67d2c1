package model

import "time"

// Venue is the physical place hosting performances.  InternalID is assigned
// by the identity resolver and is the only key other rows refer to.
//
// Fields:
//  InternalID    – deterministic id (venues.internal_id).
//  SourceID      – upstream id; may be empty or unstable between scrapes.
//  SourceWebsite – site the venue was scraped from.
//  Name..Country – content fields hashed when SourceID is unusable.
type Venue struct {
	InternalID    string `json:"internal_id,omitempty"`    // venues.internal_id
	SourceID      string `json:"source_id,omitempty"`      // venues.source_id
	SourceWebsite string `json:"source_website,omitempty"` // venues.source_website
	Name          string `json:"name"`                     // venues.name
	Address       string `json:"address,omitempty"`        // venues.address
	City          string `json:"city,omitempty"`           // venues.city
	State         string `json:"state,omitempty"`          // venues.state
	PostalCode    string `json:"postal_code,omitempty"`    // venues.postal_code
	Country       string `json:"country,omitempty"`        // venues.country
}

// Event is the production being performed (a show, a concert tour, a
// fixture).  One event has many performances.
type Event struct {
	InternalID    string `json:"internal_id,omitempty"`    // events.internal_id
	SourceID      string `json:"source_id,omitempty"`      // events.source_id
	SourceWebsite string `json:"source_website,omitempty"` // events.source_website
	Name          string `json:"name"`                     // events.name
	Category      string `json:"category,omitempty"`       // events.category
}

// Performance is one dated occurrence of an event at a venue.  VenueID and
// EventID are filled in by the identity pass before the performance itself
// is hashed.
type Performance struct {
	InternalID    string    `json:"internal_id,omitempty"`    // performances.internal_id
	SourceID      string    `json:"source_id,omitempty"`      // performances.source_id
	SourceWebsite string    `json:"source_website,omitempty"` // performances.source_website
	VenueID       string    `json:"venue_id,omitempty"`       // performances.venue_id
	EventID       string    `json:"event_id,omitempty"`       // performances.event_id
	Name          string    `json:"name,omitempty"`           // performances.name
	StartsAt      time.Time `json:"starts_at"`                // performances.starts_at (UTC)
}
