package draft

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const draftsSchema = `CREATE TABLE IF NOT EXISTS drafts (
	item_id    TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps drafts in a local database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) drafts.db inside dir.
func OpenSQLite(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create draft directory: %w", err)
	}
	path := filepath.Join(dir, "drafts.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open draft database: %w", err)
	}
	if _, err := db.Exec(draftsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create drafts table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context, itemID string) (Entry, bool, error) {
	var (
		e       Entry
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT item_id, content, updated_at FROM drafts WHERE item_id = ?`, itemID,
	).Scan(&e.ItemID, &e.Content, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load draft: %w", err)
	}
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, entry Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (item_id, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		entry.ItemID, entry.Content, entry.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, itemID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// List returns every stored draft, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, content, updated_at FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.ItemID, &e.Content, &updated); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
