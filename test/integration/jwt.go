package integration

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer signs the access tokens the mock backend hands out on login.
// The BFF never verifies them; it only reads exp to reject stale logins.
type tokenIssuer struct {
	key    []byte
	issuer string
}

func newTokenIssuer(t *testing.T) *tokenIssuer {
	t.Helper()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	return &tokenIssuer{key: key, issuer: "https://auth.test.staffdesk.dev"}
}

// Token returns a token for username valid for ttl.
func (ti *tokenIssuer) Token(t *testing.T, username string, ttl time.Duration) string {
	t.Helper()
	return ti.sign(t, username, time.Now().Add(ttl))
}

// ExpiredToken returns a token for username whose exp lies in the past.
func (ti *tokenIssuer) ExpiredToken(t *testing.T, username string) string {
	t.Helper()
	return ti.sign(t, username, time.Now().Add(-time.Minute))
}

func (ti *tokenIssuer) sign(t *testing.T, username string, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Issuer:    ti.issuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
