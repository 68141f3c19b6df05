package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
)

type ReviewService struct {
	reviews *store.ReviewStore
	plugins *store.PluginStore
	logger  *slog.Logger
}

func NewReviewService(reviews *store.ReviewStore, plugins *store.PluginStore, logger *slog.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, plugins: plugins, logger: logger}
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}

// Add posts a review. Each account may review a plugin once.
func (s *ReviewService) Add(ctx context.Context, accountID string, pluginID int64, rating int, comment string) (*model.Review, error) {
	if accountID == "" {
		return nil, apperr.ErrMissingField.With("account id")
	}
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	if !validRating(rating) {
		return nil, apperr.ErrMissingField.With("rating must be between 1 and 5")
	}
	existing, err := s.reviews.GetByPoster(ctx, pluginID, accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrReviewFound
	}

	r, err := s.reviews.Create(ctx, &model.Review{
		PluginID:  pluginID,
		AccountID: accountID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrReviewFound
	}
	return r, err
}

func (s *ReviewService) Get(ctx context.Context, id int64) (*model.Review, error) {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.ErrReviewNotFound
	}
	return r, nil
}

// ListByPlugin returns the visible reviews and their average rating,
// rounded to two decimals.
func (s *ReviewService) ListByPlugin(ctx context.Context, pluginID int64) (*model.ReviewSummary, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListByPlugin(ctx, pluginID, model.ReviewStatusVisible)
	if err != nil {
		return nil, err
	}
	summary := &model.ReviewSummary{PluginID: pluginID, Reviews: reviews, Count: len(reviews)}
	if summary.Reviews == nil {
		summary.Reviews = []model.Review{}
	}
	if len(reviews) > 0 {
		total := 0
		for _, r := range reviews {
			total += r.Rating
		}
		summary.AverageRating = math.Round(float64(total)/float64(len(reviews))*100) / 100
	}
	return summary, nil
}

// Update edits a review. Only its poster may do so; anyone else sees it as
// missing.
func (s *ReviewService) Update(ctx context.Context, accountID string, id int64, rating int, comment string) (*model.Review, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.AccountID != accountID {
		return nil, apperr.ErrReviewNotFound
	}
	if !validRating(rating) {
		return nil, apperr.ErrMissingField.With("rating must be between 1 and 5")
	}
	return s.reviews.Update(ctx, id, rating, strings.TrimSpace(comment))
}

func (s *ReviewService) SetStatus(ctx context.Context, id int64, status string) (*model.Review, error) {
	if !model.ValidReviewStatuses[status] {
		return nil, apperr.ErrMissingField.With("status")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.reviews.SetStatus(ctx, id, status)
}

func (s *ReviewService) Delete(ctx context.Context, id int64) (*model.Review, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}
