package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pluginhub/internal/auth"
	"github.com/dukerupert/pluginhub/internal/service"
)

type WikiHandler struct {
	wiki   *service.WikiService
	logger *slog.Logger
}

func NewWikiHandler(wiki *service.WikiService, logger *slog.Logger) *WikiHandler {
	return &WikiHandler{wiki: wiki, logger: logger}
}

func (h *WikiHandler) Get(w http.ResponseWriter, r *http.Request) {
	pluginID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	wiki, err := h.wiki.Get(r.Context(), auth.AccountID(r.Context()), pluginID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, wiki)
}

func (h *WikiHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pluginID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.wiki.Delete(r.Context(), pluginID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WikiHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	pluginID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	topic, err := h.wiki.GetTopic(r.Context(), auth.AccountID(r.Context()), pluginID, r.PathValue("name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (h *WikiHandler) AddTopic(w http.ResponseWriter, r *http.Request) {
	pluginID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.TopicInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	topic, err := h.wiki.AddTopic(r.Context(), pluginID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, topic)
}

func (h *WikiHandler) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	pluginID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.TopicInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	topic, err := h.wiki.UpdateTopic(r.Context(), pluginID, r.PathValue("name"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (h *WikiHandler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	pluginID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	topic, err := h.wiki.DeleteTopic(r.Context(), pluginID, r.PathValue("name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}
