package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type ReviewStore struct {
	db *sqlx.DB
}

func NewReviewStore(db *sqlx.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

const reviewCols = `id, plugin_id, account_id, rating, comment, status, created_at, updated_at`

func (s *ReviewStore) Create(ctx context.Context, r *model.Review) (*model.Review, error) {
	ts := now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (plugin_id, account_id, rating, comment, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.PluginID, r.AccountID, r.Rating, r.Comment, model.ReviewStatusVisible, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ReviewStore) GetByID(ctx context.Context, id int64) (*model.Review, error) {
	var r model.Review
	err := s.db.GetContext(ctx, &r, `SELECT `+reviewCols+` FROM reviews WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &r, nil
}

func (s *ReviewStore) GetByPoster(ctx context.Context, pluginID int64, accountID string) (*model.Review, error) {
	var r model.Review
	err := s.db.GetContext(ctx, &r,
		`SELECT `+reviewCols+` FROM reviews WHERE plugin_id = ? AND account_id = ?`,
		pluginID, accountID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review by poster: %w", err)
	}
	return &r, nil
}

func (s *ReviewStore) ListByPlugin(ctx context.Context, pluginID int64, status string) ([]model.Review, error) {
	var reviews []model.Review
	err := s.db.SelectContext(ctx, &reviews,
		`SELECT `+reviewCols+` FROM reviews WHERE plugin_id = ? AND status = ? ORDER BY created_at DESC, id DESC`,
		pluginID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *ReviewStore) Update(ctx context.Context, id int64, rating int, comment string) (*model.Review, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET rating = ?, comment = ?, updated_at = ? WHERE id = ?`,
		rating, comment, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ReviewStore) SetStatus(ctx context.Context, id int64, status string) (*model.Review, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET status = ?, updated_at = ? WHERE id = ?`,
		status, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set review status: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ReviewStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}
