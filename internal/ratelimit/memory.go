package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
//
// Records are not shared between processes and are lost on restart. Expired records are only
// replaced when their identifier is seen again; Prune removes them eagerly.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Take implements Store.
func (m *MemoryStore) Take(ctx context.Context, identifier string, max int, window time.Duration, now time.Time) (Record, bool, error) {
	if identifier == "" {
		return Record{}, false, ErrIdentifierRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[identifier]
	if !ok || rec.Expired(now) {
		rec = &Record{Identifier: identifier, Count: 1, ResetAt: now.Add(window)}
		m.records[identifier] = rec
		return *rec, true, nil
	}

	if rec.Count >= max {
		return *rec, false, nil
	}

	rec.Count++
	return *rec, true, nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, identifier string) (*Record, error) {
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[identifier]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// List implements Store. Records are ordered by identifier.
func (m *MemoryStore) List(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

// Reset implements Store.
func (m *MemoryStore) Reset(ctx context.Context, identifier string) error {
	if identifier == "" {
		return ErrIdentifierRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, identifier)
	return nil
}

// Prune drops records whose window ended before now and returns how many were removed.
func (m *MemoryStore) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, key)
			removed++
		}
	}
	return removed
}

// StartJanitor prunes expired records every interval until ctx is done.
func (m *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				m.Prune(now.UTC())
			}
		}
	}()
}
