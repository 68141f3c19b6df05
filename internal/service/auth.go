package service

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/auth"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
)

// AuthService issues plugin session tokens and keeps the token denylist.
type AuthService struct {
	blacklist *store.BlacklistStore
	access    *AccessService
	plugins   *store.PluginStore
	key       []byte
	ttl       time.Duration
	logger    *slog.Logger
}

func NewAuthService(blacklist *store.BlacklistStore, access *AccessService, plugins *store.PluginStore, key []byte, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{blacklist: blacklist, access: access, plugins: plugins, key: key, ttl: ttl, logger: logger}
}

// PluginToken is a signed session token for one plugin.
type PluginToken struct {
	Token     string    `json:"token"`
	PluginID  int64     `json:"plugin_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// hashToken keys the denylist; raw tokens are never stored.
func hashToken(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// InsertToken adds the token to the denylist. Listing a token twice returns
// the original entry.
func (s *AuthService) InsertToken(ctx context.Context, raw string) (*model.BlacklistToken, error) {
	if raw == "" {
		return nil, apperr.ErrInvalidJwtToken
	}
	return s.blacklist.Insert(ctx, hashToken(raw), auth.ExpiresAt(s.key, raw))
}

func (s *AuthService) IsBlacklisted(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return s.blacklist.Exists(ctx, hashToken(raw))
}

func (s *AuthService) DeleteToken(ctx context.Context, raw string) error {
	deleted, err := s.blacklist.Delete(ctx, hashToken(raw))
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.ErrInvalidJwtToken
	}
	return nil
}

func (s *AuthService) IssuePluginToken(ctx context.Context, accountID, pluginRef string) (*PluginToken, error) {
	has, err := s.access.HasAccess(ctx, accountID, pluginRef)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, apperr.ErrProfileNoAccess
	}
	p, err := resolvePlugin(ctx, s.plugins, pluginRef)
	if err != nil {
		return nil, err
	}

	token, err := auth.NewPluginToken(s.key, accountID, p.ID, s.ttl)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("plugin token issued", "account_id", accountID, "plugin_id", p.ID)
	return &PluginToken{Token: token, PluginID: p.ID, ExpiresAt: time.Now().Add(s.ttl).UTC()}, nil
}

func (s *AuthService) ValidatePluginToken(ctx context.Context, raw string) (*auth.PluginClaims, error) {
	claims, err := auth.ParsePluginToken(s.key, raw)
	if err != nil {
		return nil, err
	}
	listed, err := s.IsBlacklisted(ctx, raw)
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, apperr.ErrTokenBlacklisted
	}
	return claims, nil
}

// PurgeExpired drops denylist entries for tokens that have expired anyway.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.blacklist.DeleteExpired(ctx, time.Now())
}
