package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type AnnotationRecord struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"itemId"`
	SessionID    string    `json:"sessionId"`
	Method       string    `json:"method"`
	From         int       `json:"from"`
	To           int       `json:"to"`
	SelectedText string    `json:"selectedText"`
	Block        string    `json:"block"`
	Responses    int       `json:"responses"`
	CreatedAt    time.Time `json:"createdAt"`
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertAnnotation(ctx context.Context, rec AnnotationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annotations (id, item_id, session_id, method, sel_from, sel_to, selected_text, block, responses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.ItemID, rec.SessionID, rec.Method, rec.From, rec.To, rec.SelectedText, rec.Block, rec.Responses, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

// ListAnnotations returns the newest records for itemID first.
func (s *PostgresStore) ListAnnotations(ctx context.Context, itemID string, limit int) ([]AnnotationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, session_id, method, sel_from, sel_to, selected_text, block, responses, created_at
		FROM annotations
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	out := []AnnotationRecord{}
	for rows.Next() {
		var rec AnnotationRecord
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.SessionID, &rec.Method, &rec.From, &rec.To,
			&rec.SelectedText, &rec.Block, &rec.Responses, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
