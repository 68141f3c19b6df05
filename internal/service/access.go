package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
	"github.com/dukerupert/pluginhub/internal/websocket"
)

// AccessService manages the set of plugins each profile is entitled to.
type AccessService struct {
	plugins  *store.PluginStore
	profiles *store.ProfileStore
	events   Publisher
	logger   *slog.Logger
}

func NewAccessService(plugins *store.PluginStore, profiles *store.ProfileStore, events Publisher, logger *slog.Logger) *AccessService {
	return &AccessService{plugins: plugins, profiles: profiles, events: publisherOrNop(events), logger: logger}
}

// AddAccess grants a free plugin. Premium plugins are only granted through
// a completed purchase.
func (s *AccessService) AddAccess(ctx context.Context, accountID, pluginRef string) (*model.Profile, error) {
	p, err := resolvePlugin(ctx, s.plugins, pluginRef)
	if err != nil {
		return nil, err
	}
	profile, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return nil, err
	}
	if profile.HasPlugin(p.ID) {
		return nil, apperr.ErrProfileAlreadyHasAccess
	}
	if p.Price > 0 {
		return nil, apperr.ErrPluginIsPremium
	}

	if err := s.profiles.Grant(ctx, accountID, p.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.ErrProfileAlreadyHasAccess
		}
		return nil, err
	}
	s.events.Publish(websocket.NewMessage("access", "granted", p.ID, map[string]any{"account_id": accountID}))
	return getProfile(ctx, s.profiles, accountID)
}

func (s *AccessService) HasAccess(ctx context.Context, accountID, pluginRef string) (bool, error) {
	p, err := resolvePlugin(ctx, s.plugins, pluginRef)
	if err != nil {
		return false, err
	}
	profile, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return false, err
	}
	return profile.HasPlugin(p.ID), nil
}

func (s *AccessService) RemoveAccess(ctx context.Context, accountID, pluginRef string) (*model.Profile, error) {
	p, err := resolvePlugin(ctx, s.plugins, pluginRef)
	if err != nil {
		return nil, err
	}
	if _, err := getProfile(ctx, s.profiles, accountID); err != nil {
		return nil, err
	}
	removed, err := s.profiles.Revoke(ctx, accountID, p.ID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, apperr.ErrProfileNoAccess
	}
	s.events.Publish(websocket.NewMessage("access", "revoked", p.ID, map[string]any{"account_id": accountID}))
	return getProfile(ctx, s.profiles, accountID)
}

// GrantPurchased records a paid purchase. Plugins already held are skipped
// and unknown ids are logged and ignored, so a replayed webhook is harmless.
func (s *AccessService) GrantPurchased(ctx context.Context, accountID string, pluginIDs []int64) (*model.Profile, error) {
	profile, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return nil, err
	}
	for _, id := range pluginIDs {
		if profile.HasPlugin(id) {
			continue
		}
		p, err := s.plugins.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			s.logger.Warn("purchased plugin not found", "account_id", accountID, "plugin_id", id)
			continue
		}
		if err := s.profiles.Grant(ctx, accountID, id); err != nil && !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		profile.AuthorizedPlugins = append(profile.AuthorizedPlugins, id)
		s.logger.Info("plugin purchased", "account_id", accountID, "plugin_id", id)
		s.events.Publish(websocket.NewMessage("access", "granted", id, map[string]any{"account_id": accountID}))
	}
	return getProfile(ctx, s.profiles, accountID)
}

// Authorize reports whether accountID may use p. Free plugins are open to
// everyone, including anonymous callers.
func (s *AccessService) Authorize(ctx context.Context, accountID string, p *model.Plugin) error {
	if !p.Premium {
		return nil
	}
	if accountID == "" {
		return apperr.ErrInvalidJwtToken
	}
	profile, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return err
	}
	if profile.Banned {
		return apperr.ErrProfileBanned
	}
	if !profile.HasPlugin(p.ID) {
		return apperr.ErrProfileNoAccess
	}
	return nil
}
