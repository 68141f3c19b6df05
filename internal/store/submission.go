package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

// SubmissionStore persists bug reports or suggestions. The two tables share
// a schema, so one store type serves both.
type SubmissionStore struct {
	db    *sqlx.DB
	table string
	kind  string
}

func NewBugStore(db *sqlx.DB) *SubmissionStore {
	return &SubmissionStore{db: db, table: "bugs", kind: "bug"}
}

func NewSuggestionStore(db *sqlx.DB) *SubmissionStore {
	return &SubmissionStore{db: db, table: "suggestions", kind: "suggestion"}
}

const submissionCols = `id, plugin_id, account_id, comment, status, created_at, updated_at`

func (s *SubmissionStore) Create(ctx context.Context, pluginID int64, accountID, comment string) (*model.Submission, error) {
	ts := now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (plugin_id, account_id, comment, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'open', ?, ?)`,
		pluginID, accountID, comment, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", s.kind, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	var sub model.Submission
	err := s.db.GetContext(ctx, &sub, `SELECT `+submissionCols+` FROM `+s.table+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.kind, err)
	}
	return &sub, nil
}

// Latest returns the most recent submission by the account for the plugin.
func (s *SubmissionStore) Latest(ctx context.Context, pluginID int64, accountID string) (*model.Submission, error) {
	var sub model.Submission
	err := s.db.GetContext(ctx, &sub,
		`SELECT `+submissionCols+` FROM `+s.table+`
		 WHERE plugin_id = ? AND account_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		pluginID, accountID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest %s: %w", s.kind, err)
	}
	return &sub, nil
}

func (s *SubmissionStore) ListByPlugin(ctx context.Context, pluginID int64) ([]model.Submission, error) {
	var subs []model.Submission
	err := s.db.SelectContext(ctx, &subs,
		`SELECT `+submissionCols+` FROM `+s.table+` WHERE plugin_id = ? ORDER BY created_at DESC, id DESC`,
		pluginID,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	return subs, nil
}

func (s *SubmissionStore) SetStatus(ctx context.Context, id int64, status string) (*model.Submission, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+s.table+` SET status = ?, updated_at = ? WHERE id = ?`,
		status, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set %s status: %w", s.kind, err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubmissionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	return nil
}
