package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type PluginStore struct {
	db *sqlx.DB
}

func NewPluginStore(db *sqlx.DB) *PluginStore {
	return &PluginStore{db: db}
}

const pluginCols = `id, name, basic_description, description, version, active, premium, price, created_at, updated_at`

func (s *PluginStore) Create(ctx context.Context, p *model.Plugin) (*model.Plugin, error) {
	ts := now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO plugins (name, basic_description, description, version, active, premium, price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.BasicDescription, p.Description, p.Version, p.Active, p.Premium, p.Price, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert plugin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PluginStore) GetByID(ctx context.Context, id int64) (*model.Plugin, error) {
	var p model.Plugin
	err := s.db.GetContext(ctx, &p, `SELECT `+pluginCols+` FROM plugins WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plugin: %w", err)
	}
	return &p, nil
}

func (s *PluginStore) GetByName(ctx context.Context, name string) (*model.Plugin, error) {
	var p model.Plugin
	err := s.db.GetContext(ctx, &p, `SELECT `+pluginCols+` FROM plugins WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plugin by name: %w", err)
	}
	return &p, nil
}

func (s *PluginStore) List(ctx context.Context, activeOnly bool) ([]model.Plugin, error) {
	query := `SELECT ` + pluginCols + ` FROM plugins`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	var plugins []model.Plugin
	if err := s.db.SelectContext(ctx, &plugins, query); err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	return plugins, nil
}

// Update writes every mutable column of p and returns the stored row.
func (s *PluginStore) Update(ctx context.Context, p *model.Plugin) (*model.Plugin, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plugins SET name = ?, basic_description = ?, description = ?, active = ?, premium = ?, price = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.BasicDescription, p.Description, p.Active, p.Premium, p.Price, now(), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update plugin: %w", err)
	}
	return s.GetByID(ctx, p.ID)
}

func (s *PluginStore) SetVersion(ctx context.Context, id int64, version string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plugins SET version = ?, updated_at = ? WHERE id = ?`,
		version, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set plugin version: %w", err)
	}
	return nil
}

func (s *PluginStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plugins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plugin: %w", err)
	}
	return nil
}
