package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxHistory caps the records kept per user; newest first.
const MaxHistory = 200

// Record is one persisted generation.
type Record struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Text      string    `json:"text"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// History is the per-user generation log.
type History interface {
	Append(ctx context.Context, username string, rec Record) error
	Recent(ctx context.Context, username string, limit int) ([]Record, error)
}

// NewRecord fills ID and CreatedAt.
func NewRecord(kind, topic, text, model string) Record {
	return Record{
		ID:        uuid.NewString(),
		Type:      kind,
		Topic:     topic,
		Text:      text,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// FileHistory stores every user's records in one JSON document.
// Writers in this process are serialized; other processes are not coordinated.
type FileHistory struct {
	path string
	mu   sync.Mutex
}

var _ History = (*FileHistory)(nil)

func NewFileHistory(path string) *FileHistory {
	return &FileHistory{path: path}
}

// Append inserts rec at the head of username's list and trims to MaxHistory.
func (h *FileHistory) Append(_ context.Context, username string, rec Record) error {
	if username == "" {
		return fmt.Errorf("history: username is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	doc := map[string][]Record{}
	if err := readJSON(h.path, &doc); err != nil {
		return fmt.Errorf("history: read %s: %w", h.path, err)
	}
	list := append([]Record{rec}, doc[username]...)
	if len(list) > MaxHistory {
		list = list[:MaxHistory]
	}
	doc[username] = list
	if err := writeJSON(h.path, doc); err != nil {
		return fmt.Errorf("history: write %s: %w", h.path, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 means all.
// An unreadable document reads as empty history.
func (h *FileHistory) Recent(_ context.Context, username string, limit int) ([]Record, error) {
	if username == "" {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	doc := map[string][]Record{}
	if err := readJSON(h.path, &doc); err != nil {
		return []Record{}, nil
	}
	list := doc[username]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return append([]Record{}, list...), nil
}
