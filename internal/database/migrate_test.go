package database

import (
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndSplit(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "0001_entities", ms[0].Version)
	assert.Equal(t, "0002_packs", ms[1].Version)

	var tables []string
	for _, m := range ms {
		for _, stmt := range m.Statements {
			assert.False(t, strings.HasSuffix(stmt, ";"))
			fields := strings.Fields(stmt)
			require.GreaterOrEqual(t, len(fields), 6)
			tables = append(tables, fields[5])
		}
	}
	assert.Equal(t, []string{
		"venues", "events", "performances", "levels", "zones", "sections", "seats",
		"scrape_jobs", "seat_packs", "pos_listings", "pos_listing_packs",
	}, tables)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE TABLE b (y INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, got)
}

func TestDSN(t *testing.T) {
	c, err := mysql.ParseDSN(DSN("app", "pw", "db", "3306", "packs"))
	require.NoError(t, err)
	assert.Equal(t, "app", c.User)
	assert.Equal(t, "pw", c.Passwd)
	assert.Equal(t, "db:3306", c.Addr)
	assert.Equal(t, "packs", c.DBName)
	assert.True(t, c.ParseTime)
	assert.Equal(t, time.UTC, c.Loc)
	assert.False(t, c.MultiStatements)
}
