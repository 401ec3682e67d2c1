package service

import (
	"fmt"
	"strings"

	"github.com/iliyamo/seatpack-sync/internal/model"
	"github.com/iliyamo/seatpack-sync/internal/scrape"
)

// ValidationError reports a snapshot whose required fields are missing.  It
// is always fatal: nothing of the snapshot is persisted.
type ValidationError struct {
	Problems []scrape.Error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return "invalid snapshot: " + strings.Join(msgs, "; ")
}

// Validate checks the fields every snapshot must carry before any of it is
// written.  It returns nil when the snapshot is acceptable.
func Validate(s *model.Snapshot) *ValidationError {
	var problems []scrape.Error
	add := func(format string, args ...any) {
		problems = append(problems, scrape.Errorf(scrape.KindValidation, format, args...))
	}

	if strings.TrimSpace(s.SourceWebsite) == "" {
		add("source_website is required")
	}
	if strings.TrimSpace(s.Venue.Name) == "" {
		add("venue name is required")
	}
	if strings.TrimSpace(s.Event.Name) == "" {
		add("event name is required")
	}
	if s.Performance.StartsAt.IsZero() {
		add("performance starts_at is required")
	}
	switch {
	case s.Outcome.Status == "":
		add("outcome status is required")
	case !s.Outcome.Status.Valid():
		add("outcome status %q is not recognised", s.Outcome.Status)
	}
	for i, l := range s.Levels {
		if strings.TrimSpace(l.Name) == "" {
			add("level %d: name is required", i)
		}
	}
	for i, z := range s.Zones {
		if strings.TrimSpace(z.Name) == "" {
			add("zone %d: name is required", i)
		}
	}
	for i, sec := range s.Sections {
		if strings.TrimSpace(sec.Name) == "" {
			add("section %d: name is required", i)
		}
	}
	for i, st := range s.Seats {
		if strings.TrimSpace(st.Label) == "" {
			add("seat %d: seat label is required", i)
		}
		if st.PriceCents < 0 {
			add("seat %d: negative price", i)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func refProblem(err error) *ValidationError {
	return &ValidationError{Problems: []scrape.Error{scrape.NewError(scrape.KindValidation, fmt.Sprint(err))}}
}
