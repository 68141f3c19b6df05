package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/pluginhub/internal/apperr"
)

var testKey = []byte("test-secret")

func TestAccountTokenRoundTrip(t *testing.T) {
	raw, err := NewAccountToken(testKey, "acc-1", "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseAccountToken(testKey, raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "acc-1" || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseAccountTokenRejects(t *testing.T) {
	expired, _ := NewAccountToken(testKey, "acc-1", "", -time.Minute)
	noSubject, _ := NewAccountToken(testKey, "", "x@example.com", time.Hour)
	otherKey, _ := NewAccountToken([]byte("other"), "acc-1", "", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "acc-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":    "not-a-jwt",
		"expired":    expired,
		"no subject": noSubject,
		"wrong key":  otherKey,
		"alg none":   none,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccountToken(testKey, raw); !errors.Is(err, apperr.ErrInvalidJwtToken) {
				t.Errorf("err = %v, want ErrInvalidJwtToken", err)
			}
		})
	}
}

func TestPluginToken(t *testing.T) {
	raw, err := NewPluginToken(testKey, "acc-1", 42, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParsePluginToken(testKey, raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.PluginID != 42 || claims.Subject != "acc-1" {
		t.Errorf("claims = %+v", claims)
	}

	account, _ := NewAccountToken(testKey, "acc-1", "", time.Hour)
	if _, err := ParsePluginToken(testKey, account); !errors.Is(err, apperr.ErrInvalidJwtToken) {
		t.Errorf("account token accepted as plugin token: %v", err)
	}
}

func TestExpiresAt(t *testing.T) {
	expired, _ := NewPluginToken(testKey, "acc-1", 1, -time.Minute)
	if exp := ExpiresAt(testKey, expired); exp == nil || !exp.Before(time.Now()) {
		t.Errorf("expires_at = %v, want past time", exp)
	}

	forever, _ := NewAccountToken(testKey, "acc-1", "", 0)
	if exp := ExpiresAt(testKey, forever); exp != nil {
		t.Errorf("expires_at = %v, want nil", exp)
	}

	if exp := ExpiresAt(testKey, "garbage"); exp != nil {
		t.Errorf("expires_at = %v, want nil", exp)
	}
}
