// Package draft keeps crash-recovery copies of unsaved document content,
// keyed by item id.
package draft

import (
	"context"
	"sync"
	"time"
)

type Entry struct {
	ItemID    string    `json:"item_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the draft side-channel. Load reports ok=false when no draft
// exists for itemID.
type Store interface {
	Load(ctx context.Context, itemID string) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, itemID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, itemID string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[itemID]
	return e, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, entry Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ItemID] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, itemID)
	return nil
}
