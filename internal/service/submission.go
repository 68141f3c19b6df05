package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
)

// Cooldown is the minimum gap between two submissions of the same kind by
// one account for one plugin.
const Cooldown = 6 * time.Hour

// CanPost reports whether a submission at now is allowed after one at last.
func CanPost(last, now time.Time) bool {
	return now.After(last.Add(Cooldown))
}

// SubmissionService handles bug reports or suggestions; the two only differ
// in their status set and not-found error.
type SubmissionService struct {
	subs     *store.SubmissionStore
	plugins  *store.PluginStore
	statuses map[string]bool
	notFound *apperr.Error
	kind     string
	now      func() time.Time
	logger   *slog.Logger
}

func NewBugService(bugs *store.SubmissionStore, plugins *store.PluginStore, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		subs:     bugs,
		plugins:  plugins,
		statuses: model.ValidBugStatuses,
		notFound: apperr.ErrBugNotFound,
		kind:     "bug",
		now:      time.Now,
		logger:   logger,
	}
}

func NewSuggestionService(suggestions *store.SubmissionStore, plugins *store.PluginStore, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		subs:     suggestions,
		plugins:  plugins,
		statuses: model.ValidSuggestionStatuses,
		notFound: apperr.ErrSuggestionNotFound,
		kind:     "suggestion",
		now:      time.Now,
		logger:   logger,
	}
}

// Add records the submission and then enforces the cooldown against the
// poster's previous one. A rejected submission is still stored.
func (s *SubmissionService) Add(ctx context.Context, accountID string, pluginID int64, comment string) (*model.Submission, error) {
	if accountID == "" {
		return nil, apperr.ErrMissingField.With("account id")
	}
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperr.ErrMissingField.With("comment")
	}

	prior, err := s.subs.Latest(ctx, pluginID, accountID)
	if err != nil {
		return nil, err
	}
	created, err := s.subs.Create(ctx, pluginID, accountID, comment)
	if err != nil {
		return nil, err
	}
	if prior != nil && !CanPost(prior.CreatedAt, s.now()) {
		s.logger.Info("submission inside cooldown", "kind", s.kind, "account_id", accountID, "plugin_id", pluginID)
		return nil, apperr.ErrNotAllowedToPost
	}
	return created, nil
}

func (s *SubmissionService) Get(ctx context.Context, id int64) (*model.Submission, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, s.notFound
	}
	return sub, nil
}

func (s *SubmissionService) ListByPlugin(ctx context.Context, pluginID int64) ([]model.Submission, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	subs, err := s.subs.ListByPlugin(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}

func (s *SubmissionService) SetStatus(ctx context.Context, id int64, status string) (*model.Submission, error) {
	if !s.statuses[status] {
		return nil, apperr.ErrMissingField.With("status")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.subs.SetStatus(ctx, id, status)
}

func (s *SubmissionService) Delete(ctx context.Context, id int64) (*model.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Delete(ctx, id); err != nil {
		return nil, err
	}
	return sub, nil
}
