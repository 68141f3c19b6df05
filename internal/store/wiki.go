package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type WikiStore struct {
	db *sqlx.DB
}

func NewWikiStore(db *sqlx.DB) *WikiStore {
	return &WikiStore{db: db}
}

const wikiTopicCols = `plugin_id, name, title, html`

func (s *WikiStore) ListTopics(ctx context.Context, pluginID int64) ([]model.WikiTopic, error) {
	var topics []model.WikiTopic
	err := s.db.SelectContext(ctx, &topics,
		`SELECT `+wikiTopicCols+` FROM wiki_topics WHERE plugin_id = ? ORDER BY name`, pluginID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wiki topics: %w", err)
	}
	return topics, nil
}

func (s *WikiStore) GetTopic(ctx context.Context, pluginID int64, name string) (*model.WikiTopic, error) {
	var t model.WikiTopic
	err := s.db.GetContext(ctx, &t,
		`SELECT `+wikiTopicCols+` FROM wiki_topics WHERE plugin_id = ? AND name = ?`, pluginID, name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wiki topic: %w", err)
	}
	return &t, nil
}

func (s *WikiStore) CreateTopic(ctx context.Context, t model.WikiTopic) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO wiki_topics (plugin_id, name, title, html) VALUES (:plugin_id, :name, :title, :html)`, t,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert wiki topic: %w", err)
	}
	return nil
}

// UpdateTopic rewrites the topic's title and html. It reports false when no
// topic with that name exists.
func (s *WikiStore) UpdateTopic(ctx context.Context, t model.WikiTopic) (bool, error) {
	result, err := s.db.NamedExecContext(ctx,
		`UPDATE wiki_topics SET title = :title, html = :html WHERE plugin_id = :plugin_id AND name = :name`, t,
	)
	if err != nil {
		return false, fmt.Errorf("update wiki topic: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *WikiStore) DeleteTopic(ctx context.Context, pluginID int64, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM wiki_topics WHERE plugin_id = ? AND name = ?`, pluginID, name)
	if err != nil {
		return false, fmt.Errorf("delete wiki topic: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *WikiStore) DeleteAll(ctx context.Context, pluginID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM wiki_topics WHERE plugin_id = ?`, pluginID)
	if err != nil {
		return 0, fmt.Errorf("delete wiki: %w", err)
	}
	return result.RowsAffected()
}
