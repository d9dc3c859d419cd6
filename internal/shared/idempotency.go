package shared

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates the key was already claimed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore remembers which resource a client-supplied key produced.
// Keys are claimed before processing, completed with the resulting resource id
// and released again when processing fails.
type IdempotencyStore struct {
	pool  *pgxpool.Pool
	scope string
	now   func() time.Time
}

// NewIdempotencyStore constructs the store for one scope, e.g. "invoices".
func NewIdempotencyStore(pool *pgxpool.Pool, scope string) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, scope: scope, now: time.Now}
}

// Claim records key as in flight. A key claimed before returns ErrIdempotencyConflict.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (scope, key, created_at) VALUES ($1, $2, $3)`,
		s.scope, key, s.now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return Persistence("claim idempotency key", err)
	}
	return nil
}

// Complete attaches the produced resource id to a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, resourceID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE idempotency_keys SET resource_id = $3 WHERE scope = $1 AND key = $2`,
		s.scope, key, resourceID)
	return Persistence("complete idempotency key", err)
}

// Resolve returns the resource id stored for key. An empty id means the
// original request is still being processed.
func (s *IdempotencyStore) Resolve(ctx context.Context, key string) (string, error) {
	var id *string
	err := s.pool.QueryRow(ctx,
		`SELECT resource_id FROM idempotency_keys WHERE scope = $1 AND key = $2`,
		s.scope, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", Persistence("resolve idempotency key", err)
	}
	if id == nil {
		return "", nil
	}
	return *id, nil
}

// Release removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE scope = $1 AND key = $2`, s.scope, key)
	return Persistence("release idempotency key", err)
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := s.now().Add(-olderThan)
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE scope = $1 AND created_at < $2`, s.scope, cutoff)
	return Persistence("cleanup idempotency keys", err)
}

// MemoryIdempotencyStore is the in-process counterpart of IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewMemoryIdempotencyStore constructs an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: make(map[string]string)}
}

// Claim records key as in flight.
func (s *MemoryIdempotencyStore) Claim(_ context.Context, key string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return ErrIdempotencyConflict
	}
	s.keys[key] = ""
	return nil
}

// Complete attaches the produced resource id to a claimed key.
func (s *MemoryIdempotencyStore) Complete(_ context.Context, key, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = resourceID
	return nil
}

// Resolve returns the resource id stored for key.
func (s *MemoryIdempotencyStore) Resolve(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

// Release removes a key.
func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
