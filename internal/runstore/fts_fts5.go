//go:build sqlite_fts5

package runstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS runs_fts USING fts5(
			id UNINDEXED,
			keyword,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, keyword, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM runs_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO runs_fts (id, keyword, title, body) VALUES (?, ?, ?, ?)`,
		id, keyword, title, body)
	if err != nil {
		return fmt.Errorf("runstore: upsert fts: %w", err)
	}
	return nil
}

// SearchRuns runs an FTS5 query over keywords and generated copy.
func (db *DB) SearchRuns(ctx context.Context, query string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.id, r.source, r.keyword, r.language, r.title, r.score, r.grade,
		       r.accepted, r.attempts, r.created_at
		FROM runs_fts f
		JOIN runs r ON r.id = f.id
		WHERE runs_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: search: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}
