package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgLike implements Searcher with a case-insensitive title match against the
// forms table. It is the fallback when Meilisearch is absent or down.
type PgLike struct {
	db *sql.DB
}

func NewPgLike(db *sql.DB) *PgLike {
	return &PgLike{db: db}
}

// Healthy always returns true: if postgres is down, the whole app is down.
func (p *PgLike) Healthy() bool {
	return true
}

func (p *PgLike) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + strings.ReplaceAll(strings.ReplaceAll(q.Text, "%", `\%`), "_", `\_`) + "%"

	var total int
	err := p.db.QueryRow(`
		SELECT COUNT(*) FROM forms
		WHERE workspace = $1 AND title ILIKE $2
	`, q.Workspace, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count title matches: %w", err)
	}

	rows, err := p.db.Query(`
		SELECT id, title, workspace FROM forms
		WHERE workspace = $1 AND title ILIKE $2
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`, q.Workspace, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search titles: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Workspace); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
