package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// LookupResponse returns the response stored for an idempotency key.
func (s *PostgresStore) LookupResponse(ctx context.Context, key string) (int, []byte, bool, error) {
	var (
		status int
		body   []byte
	)
	err := s.db.QueryRow(ctx,
		"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1",
		key).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return status, body, true, nil
}

// SaveResponse stores the first response seen for key; later ones are ignored.
func (s *PostgresStore) SaveResponse(ctx context.Context, key string, status int, body []byte) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		key, status, body)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

func (s *MemoryStore) LookupResponse(_ context.Context, key string) (int, []byte, bool, error) {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	c, ok := s.idem[key]
	if !ok {
		return 0, nil, false, nil
	}
	return c.status, append([]byte(nil), c.body...), true, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key string, status int, body []byte) error {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	if _, ok := s.idem[key]; ok {
		return nil
	}
	s.idem[strings.Clone(key)] = cachedResponse{status: status, body: append([]byte(nil), body...)}
	return nil
}
