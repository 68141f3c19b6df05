package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/middleware"
	"github.com/dukerupert/pluginhub/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// IssueToken signs a plugin session token for the authenticated account.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	token, err := h.auth.IssuePluginToken(r.Context(), accountID, r.PathValue("plugin"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.ValidatePluginToken(r.Context(), middleware.PluginToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      true,
		"account_id": claims.Subject,
		"plugin_id":  claims.PluginID,
	})
}

func (h *AuthHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	entry, err := h.auth.InsertToken(r.Context(), middleware.PluginToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *AuthHandler) IsBlacklisted(w http.ResponseWriter, r *http.Request) {
	raw := middleware.PluginToken(r)
	if raw == "" {
		writeError(w, h.logger, apperr.ErrInvalidJwtToken)
		return
	}
	listed, err := h.auth.IsBlacklisted(r.Context(), raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"blacklisted": listed})
}

func (h *AuthHandler) Unblacklist(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteToken(r.Context(), middleware.PluginToken(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
