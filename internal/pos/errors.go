package pos

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the marketplace reports an unknown inventory
// id.  Delete swallows it because the listing is already gone.
var ErrNotFound = errors.New("pos: inventory not found")

// APIError is any non-success response from the marketplace.  Body holds the
// response text, trimmed, so ops can see what the remote side said.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("pos %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("pos %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 response.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
