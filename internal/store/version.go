package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type VersionStore struct {
	db *sqlx.DB
}

func NewVersionStore(db *sqlx.DB) *VersionStore {
	return &VersionStore{db: db}
}

const versionCols = `id, plugin_id, plugin_name, version, changelog, downloads, file_name, created_at, updated_at`

func (s *VersionStore) Create(ctx context.Context, v *model.PluginVersion) (*model.PluginVersion, error) {
	ts := now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO plugin_versions (plugin_id, plugin_name, version, changelog, file_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.PluginID, v.PluginName, v.Version, v.Changelog, v.FileName, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert version: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *VersionStore) GetByID(ctx context.Context, id int64) (*model.PluginVersion, error) {
	var v model.PluginVersion
	err := s.db.GetContext(ctx, &v, `SELECT `+versionCols+` FROM plugin_versions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

func (s *VersionStore) Get(ctx context.Context, pluginID int64, version string) (*model.PluginVersion, error) {
	var v model.PluginVersion
	err := s.db.GetContext(ctx, &v,
		`SELECT `+versionCols+` FROM plugin_versions WHERE plugin_id = ? AND version = ?`,
		pluginID, version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get version by plugin: %w", err)
	}
	return &v, nil
}

func (s *VersionStore) ListByPlugin(ctx context.Context, pluginID int64) ([]model.PluginVersion, error) {
	var versions []model.PluginVersion
	err := s.db.SelectContext(ctx, &versions,
		`SELECT `+versionCols+` FROM plugin_versions WHERE plugin_id = ? ORDER BY created_at DESC, id DESC`,
		pluginID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

func (s *VersionStore) Update(ctx context.Context, id int64, version, changelog, fileName string) (*model.PluginVersion, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plugin_versions SET version = ?, changelog = ?, file_name = ?, updated_at = ? WHERE id = ?`,
		version, changelog, fileName, now(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update version: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *VersionStore) IncrementDownloads(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE plugin_versions SET downloads = downloads + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment downloads: %w", err)
	}
	return nil
}

func (s *VersionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plugin_versions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}
