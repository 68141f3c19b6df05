package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pluginhub/internal/auth"
	"github.com/dukerupert/pluginhub/internal/service"
)

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// Create registers the caller. The email comes from the bearer token when
// present, otherwise from the request body.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ac, _ := auth.FromContext(r.Context())
	email := ac.Email
	if email == "" {
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
		email = req.Email
	}
	p, err := h.profiles.Create(r.Context(), accountID, email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccount(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.profiles.Get(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Ban(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Ban(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Unban(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Unban(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Plugins(w http.ResponseWriter, r *http.Request) {
	ids, err := h.profiles.AuthorizedPlugins(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"authorized_plugins": ids})
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
