package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/pluginhub/internal/auth"
)

var testKey = []byte("test-secret")

type fakeDenylist map[string]bool

func (f fakeDenylist) IsBlacklisted(_ context.Context, raw string) (bool, error) {
	return f[raw], nil
}

func echoAccount() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.AccountID(r.Context())))
	})
}

func bearer(t *testing.T, account string) string {
	t.Helper()
	tok, err := auth.NewAccountToken(testKey, account, account+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestRequireBearer(t *testing.T) {
	revoked := bearer(t, "acc-2")
	handler := RequireBearer(testKey, fakeDenylist{revoked: true})(echoAccount())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized, ""},
		{"valid", "Bearer " + bearer(t, "acc-1"), http.StatusOK, "acc-1"},
		{"lowercase scheme", "bearer " + bearer(t, "acc-3"), http.StatusOK, "acc-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK {
				if rec.Body.String() != tt.body {
					t.Errorf("account = %q, want %q", rec.Body.String(), tt.body)
				}
				return
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp["message"] == "" {
				t.Error("expected message in error body")
			}
		})
	}
}

func TestIdentify(t *testing.T) {
	handler := Identify(testKey, nil)(echoAccount())

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Errorf("anonymous: %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderClientID, "gateway-acc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != "gateway-acc" {
		t.Errorf("client id: got %q", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderClientID, "gateway-acc")
	req.Header.Set("Authorization", "Bearer "+bearer(t, "token-acc"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != "token-acc" {
		t.Errorf("bearer should win: got %q", rec.Body.String())
	}
}

func TestRequireOperator(t *testing.T) {
	handler := RequireOperator([]string{"ops-1", " "})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		clientID string
		bearer   bool
		want     int
	}{
		{"anonymous", "", false, http.StatusForbidden},
		{"blank id", " ", false, http.StatusForbidden},
		{"unknown client", "acc-1", false, http.StatusForbidden},
		{"account bearer", "", true, http.StatusForbidden},
		{"operator", "ops-1", false, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", "/", nil)
			if tt.clientID != "" {
				req.Header.Set(HeaderClientID, tt.clientID)
			}
			if tt.bearer {
				req.Header.Set("Authorization", "Bearer "+bearer(t, "acc-1"))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestPluginToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderPluginAuthorization, "Bearer abc.def")
	if got := PluginToken(req); got != "abc.def" {
		t.Errorf("PluginToken = %q", got)
	}
	req.Header.Set(HeaderPluginAuthorization, "abc.def")
	if got := PluginToken(req); got != "abc.def" {
		t.Errorf("PluginToken without prefix = %q", got)
	}
}
