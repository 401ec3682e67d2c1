// Package repository is the MySQL persistence boundary: scraped entities,
// seat packs, the POS listing ledger and scrape jobs.  The sentinel values
// below let handlers and the sync service tell failure modes apart.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write lost a race against another writer,
// for example a concurrent insert of the same internal id.  The whole
// snapshot is safe to retry.
var ErrConflict = errors.New("conflict")

const errDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-key violation.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDuplicateEntry
	}
	return strings.Contains(err.Error(), "1062")
}
