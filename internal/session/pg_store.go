package session

import (
	"context"
	"time"

	"lightbox/api/internal/store"
)

// PGStore keeps refresh sessions in Postgres. It is the fallback when no
// redis instance is configured; lookups join users so callers get the same
// identity payload the redis store returns.
type PGStore struct {
	db *store.PostgresStore
}

func NewPGStore(db *store.PostgresStore) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return s.db.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (s *PGStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return s.db.LookupRefreshSession(ctx, tokenHash)
}

func (s *PGStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.db.RevokeRefreshSession(ctx, tokenHash)
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PGStore) Close() error { return nil }
