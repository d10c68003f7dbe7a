package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/pitabwire/staffdesk/internal/config"
)

// SessionCookie carries the session id in a signed and encrypted cookie.
// The session state itself stays server side.
type SessionCookie struct {
	name   string
	secure bool
	ttl    time.Duration
	codec  *securecookie.SecureCookie
}

// NewSessionCookie returns a SessionCookie using hashKey for the HMAC and,
// when non-empty, blockKey for AES encryption.
func NewSessionCookie(cfg config.SessionConfig, hashKey, blockKey []byte) (*SessionCookie, error) {
	if len(hashKey) < 32 {
		return nil, errors.New("transport: cookie hash key must be at least 32 bytes")
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("transport: cookie block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(cfg.TTL.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &SessionCookie{
		name:   cfg.CookieName,
		secure: cfg.CookieSecure,
		ttl:    cfg.TTL,
		codec:  codec,
	}, nil
}

// CookieKeysFromEnv reads the cookie keys from the environment variables
// named in cfg. A missing hash key is replaced by a random one, which means
// sessions do not survive a restart.
func CookieKeysFromEnv(cfg config.SessionConfig) (hashKey, blockKey []byte) {
	if v := os.Getenv(cfg.HashKeyEnv); v != "" {
		hashKey = []byte(v)
	} else {
		slog.Warn("cookie hash key not set, generating an ephemeral one", "env", cfg.HashKeyEnv)
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if v := os.Getenv(cfg.BlockKeyEnv); v != "" {
		blockKey = []byte(v)
	}
	return hashKey, blockKey
}

// Name returns the cookie name.
func (c *SessionCookie) Name() string { return c.name }

// Read returns the session id carried by r. A missing, tampered or expired
// cookie yields "".
func (c *SessionCookie) Read(r *http.Request) string {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	var sid string
	if err := c.codec.Decode(c.name, ck.Value, &sid); err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			slog.Warn("session cookie rejected", "error", err)
		} else {
			slog.Error("session cookie decode failed", "error", err)
		}
		return ""
	}
	return sid
}

// Write sets the cookie for sid.
func (c *SessionCookie) Write(w http.ResponseWriter, sid string) error {
	encoded, err := c.codec.Encode(c.name, sid)
	if err != nil {
		return fmt.Errorf("transport: encoding session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the cookie in the browser.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
