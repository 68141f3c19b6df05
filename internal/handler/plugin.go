package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pluginhub/internal/service"
)

type PluginHandler struct {
	plugins *service.PluginService
	logger  *slog.Logger
}

func NewPluginHandler(plugins *service.PluginService, logger *slog.Logger) *PluginHandler {
	return &PluginHandler{plugins: plugins, logger: logger}
}

func (h *PluginHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.PluginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.plugins.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PluginHandler) List(w http.ResponseWriter, r *http.Request) {
	plugins, err := h.plugins.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plugins)
}

func (h *PluginHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.plugins.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PluginHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	p, err := h.plugins.GetByName(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PluginHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.PluginUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.plugins.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PluginHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.plugins.Delete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PluginHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, hdr, err := formFile(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer f.Close()

	info, err := h.plugins.AddImage(r.Context(), id, f, hdr.Filename)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *PluginHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	files, err := h.plugins.ListImages(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *PluginHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	info, err := h.plugins.DeleteImage(r.Context(), id, r.PathValue("file"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
