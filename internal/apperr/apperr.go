// Package apperr contains the named errors returned by services and their
// HTTP mapping.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a named failure with a stable code and the HTTP status it maps to.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// With attaches a detail to the error while keeping it matchable with errors.Is.
func (e *Error) With(detail string) error {
	return &detailError{base: e, detail: detail}
}

type detailError struct {
	base   *Error
	detail string
}

func (d *detailError) Error() string { return d.base.Message + ": " + d.detail }
func (d *detailError) Unwrap() error { return d.base }

func newError(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// Authentication.
var (
	ErrInvalidJwtToken  = newError("invalid_jwt_token", http.StatusUnauthorized, "invalid or missing jwt token")
	ErrTokenBlacklisted = newError("token_blacklisted", http.StatusUnauthorized, "token has been revoked")
)

// Permission and entitlement.
var (
	ErrProfileBanned           = newError("profile_banned", http.StatusForbidden, "profile is banned")
	ErrOperatorOnly            = newError("operator_only", http.StatusForbidden, "operator access required")
	ErrPluginIsPremium         = newError("plugin_is_premium", http.StatusForbidden, "plugin is premium and must be purchased")
	ErrProfileNoAccess         = newError("profile_no_access", http.StatusForbidden, "profile does not have access to this plugin")
	ErrInvalidUserDownload     = newError("invalid_user_download", http.StatusForbidden, "download link belongs to another user")
	ErrProfileAlreadyHasAccess = newError("profile_already_has_access", http.StatusConflict, "profile already has access to this plugin")
)

// Input validation.
var (
	ErrMissingField         = newError("missing_field", http.StatusBadRequest, "missing or invalid field")
	ErrInvalidRemoteAddress = newError("invalid_remote_address", http.StatusBadRequest, "missing or invalid remote address")
	ErrInvalidVersion       = newError("invalid_version", http.StatusBadRequest, "version is not a valid semantic version")
	ErrInvalidPayment       = newError("invalid_payment", http.StatusBadRequest, "payment request is not valid")
	ErrNotAllowedToPost     = newError("not_allowed_to_post", http.StatusTooManyRequests, "please wait before posting again")
)

// Lookups.
var (
	ErrPluginNotFound       = newError("plugin_not_found", http.StatusNotFound, "plugin not found")
	ErrVersionNotFound      = newError("version_not_found", http.StatusNotFound, "version not found")
	ErrProfileNotFound      = newError("profile_not_found", http.StatusNotFound, "profile not found")
	ErrDownloadLinkNotFound = newError("download_link_not_found", http.StatusNotFound, "download link not found")
	ErrReviewNotFound       = newError("review_not_found", http.StatusNotFound, "review not found")
	ErrBugNotFound          = newError("bug_not_found", http.StatusNotFound, "bug not found")
	ErrSuggestionNotFound   = newError("suggestion_not_found", http.StatusNotFound, "suggestion not found")
	ErrWikiNotFound         = newError("wiki_not_found", http.StatusNotFound, "wiki not found")
	ErrWikiTopicNotFound    = newError("wiki_topic_not_found", http.StatusNotFound, "wiki topic not found")
	ErrFileNotFound         = newError("file_not_found", http.StatusNotFound, "file not found")
	ErrVersionFileNotFound  = newError("version_file_not_found", http.StatusNotFound, "version file not found")
	ErrFolderNotFound       = newError("folder_not_found", http.StatusNotFound, "folder not found")
)

// Uniqueness.
var (
	ErrPluginFound    = newError("plugin_found", http.StatusConflict, "a plugin with this name already exists")
	ErrVersionFound   = newError("version_found", http.StatusConflict, "this version already exists")
	ErrProfileFound   = newError("profile_found", http.StatusConflict, "profile already exists")
	ErrReviewFound    = newError("review_found", http.StatusConflict, "you already reviewed this plugin")
	ErrWikiTopicFound = newError("wiki_topic_found", http.StatusConflict, "a topic with this name already exists")
)

// Upstream.
var ErrPaymentProvider = newError("payment_provider", http.StatusBadGateway, "payment provider error")

// Public returns the HTTP status and client-facing message for err.
// Errors outside this package map to 500 with a generic message.
func Public(err error) (int, string) {
	var d *detailError
	if errors.As(err, &d) {
		return d.base.Status, d.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status, e.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
