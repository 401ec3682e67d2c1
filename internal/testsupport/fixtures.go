package testsupport

import (
	"strconv"
	"time"

	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/scrape"
)

// Site is the source website used by fixtures.
const Site = "tickets.example.com"

// Snapshot returns a successful scrape of one performance with a single
// section "Stalls".  available lists the seat numbers of row A that are for
// sale at priceCents each; seats 1 through 6 exist.
func Snapshot(priceCents int64, available ...int) *model.Snapshot {
	free := make(map[int]bool, len(available))
	for _, n := range available {
		free[n] = true
	}
	s := &model.Snapshot{
		SourceWebsite: Site,
		Venue:         model.Venue{Name: "Grand Theatre", City: "London", Country: "GB"},
		Event:         model.Event{Name: "Hamlet", Category: "theatre"},
		Performance: model.Performance{
			Name:     "Hamlet evening",
			StartsAt: time.Date(2026, 11, 20, 19, 30, 0, 0, time.UTC),
		},
		Levels:   []model.Level{{Ref: "lvl", Name: "Ground", Number: 0}},
		Sections: []model.Section{{Ref: "stalls", Name: "Stalls", LevelRef: "lvl"}},
		Outcome:  scrape.Report{Status: scrape.StatusSuccess, Captured: true},
	}
	for n := 1; n <= 6; n++ {
		s.Seats = append(s.Seats, model.Seat{
			SectionRef: "stalls",
			Row:        "A",
			Label:      strconv.Itoa(n),
			PriceCents: priceCents,
			Available:  free[n],
		})
	}
	return s
}
