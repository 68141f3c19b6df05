package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type BlacklistStore struct {
	db *sqlx.DB
}

func NewBlacklistStore(db *sqlx.DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Insert stores the token hash unless it is already present, and returns the
// stored row either way.
func (s *BlacklistStore) Insert(ctx context.Context, hash string, expiresAt *time.Time) (*model.BlacklistToken, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blacklist_tokens (token_hash, issued_at, expires_at) VALUES (?, ?, ?)`,
		hash, now(), expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert blacklist token: %w", err)
	}
	return s.Get(ctx, hash)
}

func (s *BlacklistStore) Get(ctx context.Context, hash string) (*model.BlacklistToken, error) {
	var t model.BlacklistToken
	err := s.db.GetContext(ctx, &t,
		`SELECT token_hash, issued_at, expires_at FROM blacklist_tokens WHERE token_hash = ?`, hash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blacklist token: %w", err)
	}
	return &t, nil
}

func (s *BlacklistStore) Exists(ctx context.Context, hash string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM blacklist_tokens WHERE token_hash = ?`, hash)
	if err != nil {
		return false, fmt.Errorf("check blacklist token: %w", err)
	}
	return n > 0, nil
}

// Delete removes the token hash and reports whether it was present.
func (s *BlacklistStore) Delete(ctx context.Context, hash string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blacklist_tokens WHERE token_hash = ?`, hash)
	if err != nil {
		return false, fmt.Errorf("delete blacklist token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired purges rows for tokens that can no longer be presented.
func (s *BlacklistStore) DeleteExpired(ctx context.Context, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM blacklist_tokens WHERE expires_at IS NOT NULL AND expires_at < ?`, at.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired blacklist tokens: %w", err)
	}
	return result.RowsAffected()
}
