//go:build !sqlite_fts5

package runstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; SearchRuns matches keyword and title with LIKE.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error { return nil }

// SearchRuns performs a LIKE search over keywords and titles.
func (db *DB) SearchRuns(ctx context.Context, query string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM runs
		WHERE keyword LIKE ? OR title LIKE ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: search: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}
