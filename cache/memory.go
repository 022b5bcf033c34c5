package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. It backs runs without a
// cache DSN and substitutes for the SQL store in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry // keyed by namespace+"\x00"+hash

	locks *keyedLock

	// now is swappable so tests can age entries past their TTL.
	now func() time.Time
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		locks:   newKeyedLock(),
		now:     time.Now,
	}
}

// GetOrCompute implements Store.
func (m *MemoryStore) GetOrCompute(ctx context.Context, namespace string, keyParts []string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	hash, raw := Fingerprint(namespace, keyParts)
	storeKey := namespace + "\x00" + hash

	unlock := m.locks.lock(hash)
	defer unlock()

	m.mu.RLock()
	entry, ok := m.entries[storeKey]
	m.mu.RUnlock()
	if ok && !entry.Expired(m.now()) {
		return entry.Payload, nil
	}

	payload, err := compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %s entry: %w", namespace, err)
	}

	m.mu.Lock()
	m.entries[storeKey] = Entry{
		Namespace: namespace,
		KeyHash:   hash,
		KeyRaw:    raw,
		Payload:   payload,
		StoredAt:  m.now(),
		TTL:       ttl,
	}
	m.mu.Unlock()

	return payload, nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.entries)
	m.entries = make(map[string]Entry)
	return removed, nil
}

// ClearNamespace implements Store.
func (m *MemoryStore) ClearNamespace(_ context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if entry.Namespace == namespace {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats implements Store.
func (m *MemoryStore) Stats(_ context.Context) (map[string]NamespaceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]NamespaceStats)
	for _, entry := range m.entries {
		s := stats[entry.Namespace]
		s.Entries++
		if s.Oldest.IsZero() || entry.StoredAt.Before(s.Oldest) {
			s.Oldest = entry.StoredAt
		}
		if entry.StoredAt.After(s.Newest) {
			s.Newest = entry.StoredAt
		}
		stats[entry.Namespace] = s
	}
	return stats, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
