package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// driverName is go-sqlite3 with go_lower registered on every connection.
// SQLite's LOWER only folds ASCII.
const driverName = "sqlite3_archive"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_lower", strings.ToLower, true)
		},
	})
}

// contains is a case-insensitive substring predicate on col, matched
// against a likePattern argument. NULL never matches.
func contains(col string) string {
	return `go_lower(COALESCE(` + col + `, '')) LIKE ? ESCAPE '\'`
}

// likePattern lowercases s and escapes LIKE wildcards so it matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

// pageClause returns the LIMIT/OFFSET clause for a page of limit rows, or ""
// when limit is not positive.
func pageClause(limit, page int) (string, error) {
	if limit <= 0 {
		return "", nil
	}
	page = max(page, 0)
	if page > 0 && limit > math.MaxInt/page {
		return "", fmt.Errorf("page %d of %d rows is out of range: %w", page, limit, ErrInvalidArgument)
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, page*limit), nil
}
