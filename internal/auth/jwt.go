package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/pluginhub/internal/apperr"
)

// AccountClaims are carried by bearer tokens. The subject is the account id.
type AccountClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// PluginClaims are carried by plugin session tokens.
type PluginClaims struct {
	PluginID int64 `json:"plugin_id"`
	jwt.RegisteredClaims
}

func registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	rc := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl != 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return rc
}

// NewAccountToken signs a bearer token. A zero ttl yields a token without
// an expiry and a negative one is already expired.
func NewAccountToken(signingKey []byte, accountID, email string, ttl time.Duration) (string, error) {
	claims := AccountClaims{Email: email, RegisteredClaims: registered(accountID, ttl)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

func NewPluginToken(signingKey []byte, accountID string, pluginID int64, ttl time.Duration) (string, error) {
	claims := PluginClaims{PluginID: pluginID, RegisteredClaims: registered(accountID, ttl)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

func parse(signingKey []byte, raw string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	parser := jwt.NewParser(append([]jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}, opts...)...)
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return signingKey, nil
	})
	return err
}

func ParseAccountToken(signingKey []byte, raw string) (*AccountClaims, error) {
	var claims AccountClaims
	if err := parse(signingKey, raw, &claims); err != nil || claims.Subject == "" {
		return nil, apperr.ErrInvalidJwtToken
	}
	return &claims, nil
}

func ParsePluginToken(signingKey []byte, raw string) (*PluginClaims, error) {
	var claims PluginClaims
	if err := parse(signingKey, raw, &claims); err != nil || claims.Subject == "" || claims.PluginID == 0 {
		return nil, apperr.ErrInvalidJwtToken
	}
	return &claims, nil
}

// ExpiresAt returns the expiry of a token signed with signingKey, whether or
// not it has already passed. It returns nil when the token does not verify
// or carries no expiry.
func ExpiresAt(signingKey []byte, raw string) *time.Time {
	var claims jwt.RegisteredClaims
	if err := parse(signingKey, raw, &claims, jwt.WithoutClaimsValidation()); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	t := claims.ExpiresAt.Time.UTC()
	return &t
}
