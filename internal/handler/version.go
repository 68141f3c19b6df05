package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/dukerupert/pluginhub/internal/auth"
	"github.com/dukerupert/pluginhub/internal/middleware"
	"github.com/dukerupert/pluginhub/internal/service"
)

type VersionHandler struct {
	versions *service.VersionService
	logger   *slog.Logger
}

func NewVersionHandler(versions *service.VersionService, logger *slog.Logger) *VersionHandler {
	return &VersionHandler{versions: versions, logger: logger}
}

// Upload accepts a multipart form with "version", "changelog" and a "file" part.
func (h *VersionHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	v, err := h.versions.Upload(r.Context(), id, r.FormValue("version"), r.FormValue("changelog"), f, hdr.Filename)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	versions, err := h.versions.List(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.versions.Get(r.Context(), id, r.PathValue("version"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VersionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req service.VersionUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.versions.Update(r.Context(), id, r.PathValue("version"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VersionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.versions.Delete(r.Context(), id, r.PathValue("version"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VersionHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	files, err := h.versions.ListFiles(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func requester(r *http.Request) service.Requester {
	return service.Requester{AccountID: auth.AccountID(r.Context()), IP: middleware.RealIP(r)}
}

func (h *VersionHandler) RequestDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	link, err := h.versions.RequestDownload(r.Context(), requester(r), id, r.PathValue("version"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// Download redeems a link and streams the jar.
func (h *VersionHandler) Download(w http.ResponseWriter, r *http.Request) {
	file, err := h.versions.RedeemDownload(r.Context(), requester(r), r.PathValue("link"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/java-archive")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Warn("download interrupted", "link", r.PathValue("link"), "error", err)
	}
}
