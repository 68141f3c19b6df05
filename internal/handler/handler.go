// Package handler adapts HTTP requests to service calls. Handlers parse
// parameters, call one service method and encode the result.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/auth"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadSize = 64 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to its public status and message. Unexpected errors
// are logged and reported as a bare 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg := apperr.Public(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"message": msg})
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrMissingField.With("invalid " + name)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		return apperr.ErrMissingField.With("invalid JSON")
	}
	return nil
}

// requireAccount returns the caller's account id set by the auth middleware.
func requireAccount(r *http.Request) (string, error) {
	id := auth.AccountID(r.Context())
	if id == "" {
		return "", apperr.ErrInvalidJwtToken
	}
	return id, nil
}

// formFile opens the uploaded part named "file".
func formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apperr.ErrMissingField.With("file too large")
		}
		return nil, nil, apperr.ErrMissingField.With("invalid multipart form")
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, nil, apperr.ErrMissingField.With("file")
	}
	return f, hdr, nil
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
