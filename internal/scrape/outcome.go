// Package scrape models the terminal result of one extraction attempt and
// decides whether the attempt's snapshot may be treated as the new truth for
// pack synchronization.
package scrape

import "time"

// Status is the terminal state of a scrape attempt.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusPartialSuccess Status = "PARTIAL_SUCCESS"
	StatusFailed         Status = "FAILED"
	StatusTimeout        Status = "TIMEOUT"
	StatusRateLimited    Status = "RATE_LIMITED"
	StatusBlocked        Status = "BLOCKED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusPartialSuccess, StatusFailed,
		StatusTimeout, StatusRateLimited, StatusBlocked:
		return true
	}
	return false
}

// CanSync reports whether a snapshot with this status may drive the pack
// synchronizer and POS reconciler.
func (s Status) CanSync() bool {
	return s == StatusSuccess || s == StatusPartialSuccess
}

// severity orders statuses for merging a reported status with a replayed one.
func (s Status) severity() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartialSuccess:
		return 1
	case StatusFailed:
		return 2
	case StatusTimeout, StatusRateLimited, StatusBlocked:
		return 3
	}
	return -1
}

// dedicated reports whether s is one of the category-specific terminal states.
func (s Status) dedicated() bool { return s.severity() == 3 }

// Outcome is the per-attempt state machine.  It starts SUCCESS; each
// recorded error downgrades it.  The zero value is not usable, call
// NewOutcome.
type Outcome struct {
	status   Status
	captured bool
	errors   []Error
}

// NewOutcome returns an outcome in the SUCCESS state.
func NewOutcome() *Outcome {
	return &Outcome{status: StatusSuccess}
}

// Capture notes that the attempt produced usable data.  Errors recorded
// afterwards downgrade to PARTIAL_SUCCESS instead of FAILED.
func (o *Outcome) Capture() { o.captured = true }

// Captured reports whether any data was captured.
func (o *Outcome) Captured() bool { return o.captured }

// Record applies err to the state machine and returns the resulting status.
// TIMEOUT, RATE_LIMIT and BLOCKED errors force their dedicated terminal
// state; the latest such error wins.  Other kinds downgrade SUCCESS to
// PARTIAL_SUCCESS or FAILED and never upgrade a worse state.
func (o *Outcome) Record(err Error) Status {
	if err.Kind == KindValidation {
		err.Fatal = true
	}
	o.errors = append(o.errors, err)
	switch err.Kind {
	case KindTimeout:
		o.status = StatusTimeout
	case KindRateLimit:
		o.status = StatusRateLimited
	case KindBlocked:
		o.status = StatusBlocked
	default:
		if o.status.dedicated() || o.status == StatusFailed {
			break
		}
		if o.captured {
			o.status = StatusPartialSuccess
		} else {
			o.status = StatusFailed
		}
	}
	return o.status
}

// RecordErr classifies err and records it.
func (o *Outcome) RecordErr(err error) Status {
	return o.Record(Classify(err))
}

// Status returns the current terminal status.
func (o *Outcome) Status() Status { return o.status }

// CanSync reports whether the attempt may drive synchronization.
func (o *Outcome) CanSync() bool { return o.status.CanSync() }

// Retryable is true unless any recorded error is fatal.
func (o *Outcome) Retryable() bool {
	for _, e := range o.errors {
		if e.Fatal {
			return false
		}
	}
	return true
}

// RetryAfter returns the largest retry hint among recorded errors.
func (o *Outcome) RetryAfter() time.Duration {
	var longest time.Duration
	for _, e := range o.errors {
		if e.RetryAfter > longest {
			longest = e.RetryAfter
		}
	}
	return longest
}

// Errors returns a copy of the recorded errors in recording order.
func (o *Outcome) Errors() []Error {
	out := make([]Error, len(o.errors))
	copy(out, o.errors)
	return out
}

// Report is the wire form of an outcome as produced by the extraction
// collaborator.
type Report struct {
	Status   Status          `json:"status,omitempty"`
	Captured bool            `json:"captured"`
	Errors   []ReportedError `json:"errors,omitempty"`
}

// ReportedError is the wire form of Error.
type ReportedError struct {
	Kind              Kind   `json:"kind"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Fatal             bool   `json:"fatal,omitempty"`
}

// Outcome rebuilds the state machine by replaying the reported errors.  When
// the reported status is more severe than the replayed one it wins, so a
// worker that only reports "TIMEOUT" without details is still gated.  A
// report with no status that captured nothing is FAILED: an empty report
// must never pass as a complete scrape.
func (r Report) Outcome() *Outcome {
	o := NewOutcome()
	if r.Captured {
		o.Capture()
	}
	for _, re := range r.Errors {
		e := NewError(re.Kind, re.Message)
		e.Fatal = e.Fatal || re.Fatal
		if re.RetryAfterSeconds > 0 {
			e.RetryAfter = time.Duration(re.RetryAfterSeconds) * time.Second
		}
		o.Record(e)
	}
	if r.Status.Valid() {
		if r.Status.severity() > o.status.severity() ||
			(r.Status.dedicated() && o.status.dedicated()) {
			o.status = r.Status
		}
	}
	if r.Status == "" && !r.Captured && o.status == StatusSuccess {
		o.status = StatusFailed
	}
	return o
}

// ToReport converts an outcome back to its wire form.
func (o *Outcome) ToReport() Report {
	r := Report{Status: o.status, Captured: o.captured}
	for _, e := range o.errors {
		r.Errors = append(r.Errors, ReportedError{
			Kind:              e.Kind,
			Message:           e.Message,
			RetryAfterSeconds: int(e.RetryAfter / time.Second),
			Fatal:             e.Fatal,
		})
	}
	return r
}
