package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
)

type ProfileService struct {
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewProfileService(profiles *store.ProfileStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, logger: logger}
}

func (s *ProfileService) Create(ctx context.Context, accountID, email string) (*model.Profile, error) {
	accountID = strings.TrimSpace(accountID)
	email = strings.TrimSpace(email)
	if accountID == "" {
		return nil, apperr.ErrMissingField.With("account id")
	}
	if email == "" {
		return nil, apperr.ErrMissingField.With("email")
	}

	existing, err := s.profiles.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrProfileFound
	}
	p, err := s.profiles.Create(ctx, accountID, email)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrProfileFound
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile created", "account_id", accountID)
	return p, nil
}

func (s *ProfileService) Get(ctx context.Context, accountID string) (*model.Profile, error) {
	return getProfile(ctx, s.profiles, accountID)
}

func (s *ProfileService) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := s.profiles.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrProfileNotFound
	}
	return p, nil
}

func (s *ProfileService) Ban(ctx context.Context, accountID string) (*model.Profile, error) {
	return s.setBanned(ctx, accountID, true)
}

func (s *ProfileService) Unban(ctx context.Context, accountID string) (*model.Profile, error) {
	return s.setBanned(ctx, accountID, false)
}

func (s *ProfileService) setBanned(ctx context.Context, accountID string, banned bool) (*model.Profile, error) {
	p, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return nil, err
	}
	if p.Banned == banned {
		return p, nil
	}
	if err := s.profiles.SetBanned(ctx, accountID, banned); err != nil {
		return nil, err
	}
	s.logger.Info("profile ban changed", "account_id", accountID, "banned", banned)
	return getProfile(ctx, s.profiles, accountID)
}

func (s *ProfileService) Delete(ctx context.Context, accountID string) (*model.Profile, error) {
	p, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Delete(ctx, accountID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) AuthorizedPlugins(ctx context.Context, accountID string) ([]int64, error) {
	p, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return nil, err
	}
	return p.AuthorizedPlugins, nil
}
