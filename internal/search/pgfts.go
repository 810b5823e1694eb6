package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres the whole API is down anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks pages with websearch_to_tsquery against the generated fts
// column, with ts_headline over the page text for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = q.normalized()

	const tsQuery = "websearch_to_tsquery('simple', $1)"
	args := []any{q.Text}
	where := "p.fts @@ " + tsQuery
	if q.FunnelID != "" {
		where += " AND p.funnel_id = $2"
		args = append(args, q.FunnelID)
	}

	ctx := context.Background()

	var total int
	countSQL := "SELECT count(*) FROM funnel_pages p WHERE " + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT p.id, p.funnel_id, p.name, p.path_name,
			ts_headline('simple', coalesce(p.plain_text, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM funnel_pages p
		WHERE %s
		ORDER BY ts_rank(p.fts, %s) DESC, p.sort_order ASC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, q.Limit, q.Offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.PageID, &r.FunnelID, &r.Name, &r.PathName, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}
