package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var (
	// ErrContended reports a transient exclusive-access conflict; the
	// operation may succeed if retried.
	ErrContended        = errors.New("ledger store contended")
	ErrRetriesExhausted = errors.New("ledger retries exhausted")
)

// Store persists ledger entries. Appending an open entry and rewriting
// the whole set are the only mutations.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, e Entry) error
	Rewrite(ctx context.Context, entries []Entry) error
	Close() error
}

type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries), nil
}

func (m *MemoryStore) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryStore) Rewrite(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = slices.Clone(entries)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
