package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrPageNotFound = errors.New("page not found")
	ErrPathTaken    = errors.New("path already used in this funnel")
)

const pageColumns = `id, funnel_id, name, path_name, sort_order, content, updated_by, created_at, updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (Page, error) {
	var page Page
	err := row.Scan(&page.ID, &page.FunnelID, &page.Name, &page.PathName, &page.Order, &page.Content, &page.UpdatedBy, &page.CreatedAt, &page.UpdatedAt)
	return page, err
}

func (s *PostgresStore) ListPages(ctx context.Context, funnelID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+`
		FROM funnel_pages
		WHERE funnel_id=$1
		ORDER BY sort_order ASC, created_at ASC
	`, funnelID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, pageID string) (Page, error) {
	page, err := scanPage(s.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+`
		FROM funnel_pages
		WHERE id=$1
	`, pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrPageNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	return page, nil
}

// InsertPage creates a page. Order is assigned after the last page of the
// funnel when negative.
func (s *PostgresStore) InsertPage(ctx context.Context, page Page) (Page, error) {
	created, err := scanPage(s.db.QueryRowContext(ctx, `
		INSERT INTO funnel_pages (id, funnel_id, name, path_name, sort_order, content, updated_by)
		VALUES (
			$1, $2, $3, $4,
			CASE WHEN $5 < 0
				THEN (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM funnel_pages WHERE funnel_id=$2)
				ELSE $5 END,
			$6, $7
		)
		RETURNING `+pageColumns,
		page.ID, page.FunnelID, page.Name, page.PathName, page.Order, page.Content, page.UpdatedBy))
	if isUniqueViolation(err) {
		return Page{}, ErrPathTaken
	}
	if err != nil {
		return Page{}, fmt.Errorf("insert page: %w", err)
	}
	return created, nil
}

// RenamePage updates the title and path of a page.
func (s *PostgresStore) RenamePage(ctx context.Context, pageID, name, pathName, updatedBy string) (Page, error) {
	page, err := scanPage(s.db.QueryRowContext(ctx, `
		UPDATE funnel_pages
		SET name=$2, path_name=$3, updated_by=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING `+pageColumns,
		pageID, name, pathName, updatedBy))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrPageNotFound
	}
	if isUniqueViolation(err) {
		return Page{}, ErrPathTaken
	}
	if err != nil {
		return Page{}, fmt.Errorf("rename page: %w", err)
	}
	return page, nil
}

// LoadContent returns the serialized element tree of a page.
func (s *PostgresStore) LoadContent(ctx context.Context, pageID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM funnel_pages WHERE id=$1`, pageID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPageNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load content: %w", err)
	}
	return content, nil
}

// SaveContent replaces the serialized element tree of a page together with
// its searchable text.
func (s *PostgresStore) SaveContent(ctx context.Context, pageID, content, plainText, updatedBy string) (time.Time, error) {
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE funnel_pages
		SET content=$2, plain_text=$3, updated_by=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, pageID, content, plainText, updatedBy).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrPageNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("save content: %w", err)
	}
	return updatedAt, nil
}

// DeletePage removes a page row.
func (s *PostgresStore) DeletePage(ctx context.Context, pageID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM funnel_pages WHERE id=$1`, pageID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if affected == 0 {
		return ErrPageNotFound
	}
	return nil
}

// ListSearchRecords returns every page in its searchable form.
func (s *PostgresStore) ListSearchRecords(ctx context.Context) ([]SearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, funnel_id, name, path_name, plain_text FROM funnel_pages`)
	if err != nil {
		return nil, fmt.Errorf("list search records: %w", err)
	}
	defer rows.Close()

	records := make([]SearchRecord, 0)
	for rows.Next() {
		var r SearchRecord
		if err := rows.Scan(&r.ID, &r.FunnelID, &r.Name, &r.PathName, &r.Text); err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search records: %w", err)
	}
	return records, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
