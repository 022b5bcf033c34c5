package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	_ "github.com/lib/pq"
)

// hotLayerSize bounds the per-namespace in-memory layer in front of the
// cache table.
const hotLayerSize = 4096

// SQLStore persists cache entries in a Postgres table so they survive
// between batch runs. An expirable LRU per namespace answers repeat
// lookups within a run without touching the database.
type SQLStore struct {
	db    *sql.DB
	locks *keyedLock

	hotMu sync.Mutex
	hot   map[string]*lru.LRU[string, []byte]

	now func() time.Time
}

// NewSQLStore opens the cache database and creates the entries table
// when missing.
func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	s := &SQLStore{
		db:    db,
		locks: newKeyedLock(),
		hot:   make(map[string]*lru.LRU[string, []byte]),
		now:   time.Now,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS price_cache (
			namespace   VARCHAR(32) NOT NULL,
			key_hash    CHAR(64)    NOT NULL,
			key_raw     TEXT        NOT NULL,
			payload     BYTEA       NOT NULL,
			stored_at   TIMESTAMPTZ NOT NULL,
			ttl_seconds BIGINT      NOT NULL,
			PRIMARY KEY (namespace, key_hash)
		);

		CREATE INDEX IF NOT EXISTS idx_price_cache_stored_at ON price_cache(stored_at);
	`)
	return err
}

func (s *SQLStore) hotLayer(namespace string, ttl time.Duration) *lru.LRU[string, []byte] {
	s.hotMu.Lock()
	defer s.hotMu.Unlock()
	layer, ok := s.hot[namespace]
	if !ok {
		layer = lru.NewLRU[string, []byte](hotLayerSize, nil, ttl)
		s.hot[namespace] = layer
	}
	return layer
}

// GetOrCompute implements Store.
func (s *SQLStore) GetOrCompute(ctx context.Context, namespace string, keyParts []string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	hash, raw := Fingerprint(namespace, keyParts)
	hot := s.hotLayer(namespace, ttl)

	unlock := s.locks.lock(hash)
	defer unlock()

	if payload, ok := hot.Get(hash); ok {
		return payload, nil
	}

	var (
		payload    []byte
		storedAt   time.Time
		ttlSeconds int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, stored_at, ttl_seconds
		FROM price_cache
		WHERE namespace = $1 AND key_hash = $2
	`, namespace, hash).Scan(&payload, &storedAt, &ttlSeconds)
	switch {
	case err == nil:
		entry := Entry{StoredAt: storedAt, TTL: time.Duration(ttlSeconds) * time.Second}
		if !entry.Expired(s.now()) {
			hot.Add(hash, payload)
			return payload, nil
		}
	case err == sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("cache: read %s entry: %w", namespace, err)
	}

	payload, err = compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %s entry: %w", namespace, err)
	}

	// Upsert keeps each write atomic per entry: an interrupted run
	// leaves either the old entry or the new one, never a mix.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO price_cache (namespace, key_hash, key_raw, payload, stored_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace, key_hash) DO UPDATE
		SET key_raw = EXCLUDED.key_raw,
		    payload = EXCLUDED.payload,
		    stored_at = EXCLUDED.stored_at,
		    ttl_seconds = EXCLUDED.ttl_seconds
	`, namespace, hash, raw, payload, s.now(), int64(ttl.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("cache: write %s entry: %w", namespace, err)
	}

	hot.Add(hash, payload)
	return payload, nil
}

// Clear implements Store.
func (s *SQLStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache`)
	if err != nil {
		return 0, fmt.Errorf("cache: clear: %w", err)
	}
	s.purgeHot()
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

// ClearNamespace implements Store.
func (s *SQLStore) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE namespace = $1`, namespace)
	if err != nil {
		return 0, fmt.Errorf("cache: clear namespace %s: %w", namespace, err)
	}
	s.purgeHot()
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

// Stats implements Store.
func (s *SQLStore) Stats(ctx context.Context) (map[string]NamespaceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, COUNT(*), MIN(stored_at), MAX(stored_at)
		FROM price_cache
		GROUP BY namespace
	`)
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]NamespaceStats)
	for rows.Next() {
		var (
			namespace string
			ns        NamespaceStats
		)
		if err := rows.Scan(&namespace, &ns.Entries, &ns.Oldest, &ns.Newest); err != nil {
			return nil, fmt.Errorf("cache: scan stats row: %w", err)
		}
		stats[namespace] = ns
	}
	return stats, rows.Err()
}

func (s *SQLStore) purgeHot() {
	s.hotMu.Lock()
	defer s.hotMu.Unlock()
	for _, layer := range s.hot {
		layer.Purge()
	}
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
