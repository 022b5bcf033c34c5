// Package cache provides the read-through store every network-backed
// component goes through. Entries are keyed by a deterministic
// fingerprint of (namespace, key parts) and carry a per-namespace TTL;
// a fingerprint computes at most once even when two catalog items
// resolve to the same query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one stored cache record.
type Entry struct {
	Namespace string
	KeyHash   string
	KeyRaw    string
	Payload   []byte
	StoredAt  time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is past its TTL at the given time.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.StoredAt.Add(e.TTL))
}

// NamespaceStats summarizes one namespace for the stats report.
type NamespaceStats struct {
	Entries int       `json:"entries"`
	Oldest  time.Time `json:"oldest"`
	Newest  time.Time `json:"newest"`
}

// ComputeFunc produces the payload on a cache miss. It performs the
// actual network call.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Store is the read-through/write-through cache contract. Callers never
// distinguish a hit from a miss except by latency.
type Store interface {
	// GetOrCompute returns the stored payload when a live entry exists,
	// otherwise invokes compute, stores the result, and returns it.
	// At most one compute runs per fingerprint at a time.
	GetOrCompute(ctx context.Context, namespace string, keyParts []string, ttl time.Duration, compute ComputeFunc) ([]byte, error)

	// Clear removes every entry, returning the count removed.
	Clear(ctx context.Context) (int, error)

	// ClearNamespace removes one namespace's entries.
	ClearNamespace(ctx context.Context, namespace string) (int, error)

	// Stats reports entry counts and timestamp bounds per namespace.
	Stats(ctx context.Context) (map[string]NamespaceStats, error)

	Close() error
}

// Fingerprint derives the cache key hash from a namespace and key
// parts. Parts are trimmed and sorted so field order never changes the
// identity.
func Fingerprint(namespace string, keyParts []string) (hash, raw string) {
	parts := make([]string, 0, len(keyParts))
	for _, p := range keyParts {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	sort.Strings(parts)
	raw = strings.Join(parts, "|")

	sum := sha256.Sum256([]byte(namespace + "\x00" + raw))
	return hex.EncodeToString(sum[:]), raw
}

// keyedLock serializes computes per fingerprint so a future concurrent
// batch driver cannot trigger duplicate network calls. Entries are
// reference counted and dropped once the last holder releases them,
// keeping the map bounded over a long batch.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*lockEntry)}
}

// lock blocks until the key is held and returns the release func.
func (kl *keyedLock) lock(key string) func() {
	kl.mu.Lock()
	entry, ok := kl.locks[key]
	if !ok {
		entry = &lockEntry{}
		kl.locks[key] = entry
	}
	entry.refs++
	kl.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		kl.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(kl.locks, key)
		}
		kl.mu.Unlock()
	}
}
