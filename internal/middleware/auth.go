package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/auth"
)

// Header names understood by the API.
const (
	HeaderClientID            = "CLIENT_ID"
	HeaderPluginAuthorization = "PLUGIN_AUTHORIZATION"
)

// Denylist reports whether a raw token has been revoked.
type Denylist interface {
	IsBlacklisted(ctx context.Context, raw string) (bool, error)
}

// BearerToken returns the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	return stripBearer(r.Header.Get("Authorization"))
}

// PluginToken returns the plugin session token, with or without a Bearer
// prefix.
func PluginToken(r *http.Request) string {
	return stripBearer(r.Header.Get(HeaderPluginAuthorization))
}

func stripBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}

func writeAppError(w http.ResponseWriter, err error) {
	status, msg := apperr.Public(err)
	writeMessage(w, status, msg)
}

func authenticate(r *http.Request, key []byte, denylist Denylist) (auth.AuthContext, error) {
	raw := BearerToken(r)
	if raw == "" {
		return auth.AuthContext{}, apperr.ErrInvalidJwtToken
	}
	claims, err := auth.ParseAccountToken(key, raw)
	if err != nil {
		return auth.AuthContext{}, err
	}
	if denylist != nil {
		listed, err := denylist.IsBlacklisted(r.Context(), raw)
		if err != nil {
			return auth.AuthContext{}, err
		}
		if listed {
			return auth.AuthContext{}, apperr.ErrTokenBlacklisted
		}
	}
	return auth.AuthContext{AccountID: claims.Subject, Email: claims.Email}, nil
}

// RequireBearer rejects requests without a valid, unrevoked account token.
func RequireBearer(key []byte, denylist Denylist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := authenticate(r, key, denylist)
			if err != nil {
				writeAppError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireOperator only lets through callers whose gateway CLIENT_ID is in
// the allow-list. An empty list rejects everyone.
func RequireOperator(allowed []string) func(http.Handler) http.Handler {
	ops := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		if id = strings.TrimSpace(id); id != "" {
			ops[id] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ops[strings.TrimSpace(r.Header.Get(HeaderClientID))]; !ok {
				writeAppError(w, apperr.ErrOperatorOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identify attaches the caller's account when one can be established and
// lets anonymous requests through. A valid bearer token wins over the
// gateway's CLIENT_ID header.
func Identify(key []byte, denylist Denylist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := authenticate(r, key, denylist)
			if err != nil {
				ac = auth.AuthContext{AccountID: strings.TrimSpace(r.Header.Get(HeaderClientID))}
			}
			if ac.AccountID != "" {
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}
