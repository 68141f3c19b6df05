package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pluginhub/internal/service"
)

// AccessHandler manages the caller's own entitlements. {plugin} is a plugin
// id or name.
type AccessHandler struct {
	access *service.AccessService
	logger *slog.Logger
}

func NewAccessHandler(access *service.AccessService, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{access: access, logger: logger}
}

func (h *AccessHandler) Add(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	profile, err := h.access.AddAccess(r.Context(), accountID, r.PathValue("plugin"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *AccessHandler) Has(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	has, err := h.access.HasAccess(r.Context(), accountID, r.PathValue("plugin"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"access": has})
}

func (h *AccessHandler) Remove(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	profile, err := h.access.RemoveAccess(r.Context(), accountID, r.PathValue("plugin"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
