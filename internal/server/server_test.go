package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/pluginhub/internal/auth"
	"github.com/dukerupert/pluginhub/internal/database"
	"github.com/dukerupert/pluginhub/internal/payment"
	"github.com/dukerupert/pluginhub/internal/storage"
)

var testKey = []byte("server-test-secret")

func newServer(t *testing.T, payments *payment.Client) *Server {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, files, payments, testKey, time.Hour, logger)
}

func newTestServer(t *testing.T, payments *payment.Client) http.Handler {
	t.Helper()
	return newServer(t, payments).Router()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, req *http.Request, accountID string) *http.Request {
	t.Helper()
	token, err := auth.NewAccountToken(testKey, accountID, accountID+"@example.com", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPaymentRoutesRequireStripe(t *testing.T) {
	h := newTestServer(t, nil)
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = newTestServer(t, payment.NewClient(payment.Config{SecretKey: "sk_test_x", WebhookSecret: "whsec_x"}))
	rec = serve(h, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/payments/intents", strings.NewReader(`{"plugin_ids":[1]}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccessRequiresBearer(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/access/Foo", nil)
	req.Header.Set("CLIENT_ID", "acct-1")
	rec := serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, bearer(t, httptest.NewRequest(http.MethodGet, "/access/Foo", nil), "acct-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileFlow(t *testing.T) {
	h := newTestServer(t, nil)

	rec := serve(h, bearer(t, httptest.NewRequest(http.MethodPost, "/profiles", nil), "acct-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/profiles/me", nil)
	req.Header.Set("CLIENT_ID", "acct-1")
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "acct-1@example.com")

	rec = serve(h, httptest.NewRequest(http.MethodPut, "/profiles/acct-1/ban", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"banned":true`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/profiles/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRequestsAreRateLimited(t *testing.T) {
	h := newTestServer(t, nil)

	var last *httptest.ResponseRecorder
	for i := 0; i <= downloadLimit; i++ {
		last = serve(h, httptest.NewRequest(http.MethodPost, "/plugins/1/versions/1.0.0/download", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/plugins", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPluginLookupByName(t *testing.T) {
	h := newTestServer(t, nil)

	body := `{"name":"Foo","basic_description":"b","description":"d"}`
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/plugins", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/plugin-names/Foo", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Foo"`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/plugins/1/versions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnblacklistRequiresOperator(t *testing.T) {
	srv := newServer(t, nil)
	srv.AllowOperators([]string{"ops-gateway"})
	h := srv.Router()

	token, err := auth.NewPluginToken(testKey, "acct-1", 1, time.Hour)
	require.NoError(t, err)
	withToken := func(method, path string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("PLUGIN_AUTHORIZATION", token)
		return req
	}

	rec := serve(h, withToken(http.MethodPost, "/auth/blacklist"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = serve(h, withToken(http.MethodGet, "/auth/validate"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, withToken(http.MethodDelete, "/auth/blacklist"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := withToken(http.MethodDelete, "/auth/blacklist")
	req.Header.Set("CLIENT_ID", "acct-1")
	rec = serve(h, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, bearer(t, withToken(http.MethodDelete, "/auth/blacklist"), "acct-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, withToken(http.MethodGet, "/auth/validate"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = withToken(http.MethodDelete, "/auth/blacklist")
	req.Header.Set("CLIENT_ID", "ops-gateway")
	rec = serve(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h, withToken(http.MethodGet, "/auth/validate"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
