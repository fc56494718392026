package state

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	expiresAt time.Time
	hasExpiry bool
	record    StoredResponse
}

// Memory is the in-process StateStore backend: a mutex-guarded map with
// lazy, get-time expiry rather than a background sweep, matching the
// original's MemoryStateStore exactly.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory constructs an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}}
}

func (m *Memory) Get(ctx context.Context, responseID string) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[responseID]
	if !ok {
		return nil, nil
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(m.entries, responseID)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

func (m *Memory) Set(ctx context.Context, responseID string, record StoredResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{record: record}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[responseID] = entry
	return nil
}

func (m *Memory) Delete(ctx context.Context, responseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, responseID)
	return nil
}

func (m *Memory) Close(ctx context.Context) error { return nil }
