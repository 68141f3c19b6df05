package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type ProfileStore struct {
	db *sqlx.DB
}

func NewProfileStore(db *sqlx.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileCols = `id, email, banned, created_at, updated_at`

func (s *ProfileStore) Create(ctx context.Context, id, email string) (*model.Profile, error) {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, banned, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		id, email, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the profile with its entitlement set loaded.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.GetContext(ctx, &p, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p.AuthorizedPlugins, err = s.AuthorizedPlugins(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT id FROM profiles WHERE email = ? ORDER BY created_at LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProfileStore) SetBanned(ctx context.Context, id string, banned bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET banned = ?, updated_at = ? WHERE id = ?`,
		banned, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set profile banned: %w", err)
	}
	return nil
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) AuthorizedPlugins(ctx context.Context, id string) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids,
		`SELECT plugin_id FROM profile_plugins WHERE profile_id = ? ORDER BY plugin_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list authorized plugins: %w", err)
	}
	return ids, nil
}

// Grant adds the plugin to the profile's entitlement set. It returns
// ErrConflict if the entitlement already exists.
func (s *ProfileStore) Grant(ctx context.Context, id string, pluginID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_plugins (profile_id, plugin_id, granted_at) VALUES (?, ?, ?)`,
		id, pluginID, now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("grant plugin: %w", err)
	}
	return nil
}

// Revoke removes the entitlement and reports whether one existed.
func (s *ProfileStore) Revoke(ctx context.Context, id string, pluginID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_plugins WHERE profile_id = ? AND plugin_id = ?`,
		id, pluginID,
	)
	if err != nil {
		return false, fmt.Errorf("revoke plugin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
