package auth

import (
	"errors"
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the login session id.
const SessionCookieName = "vitals_session"

var (
	// ErrNoCookie is returned when the session cookie is absent or empty.
	ErrNoCookie = errors.New("cookie not found")

	// ErrEmptySessionID is returned when building a cookie without a session id.
	ErrEmptySessionID = errors.New("session ID cannot be empty")
)

// CookieConfig holds the session cookie attributes.
type CookieConfig struct {
	Name string

	// MaxAge is the lifetime in seconds; it should match the session TTL.
	MaxAge int

	// Secure restricts the cookie to HTTPS.
	Secure bool

	SameSite http.SameSite
	Path     string
}

// DefaultCookieConfig returns an HttpOnly, SameSite=Strict cookie that lives
// for ttl.
func DefaultCookieConfig(ttl time.Duration) CookieConfig {
	return CookieConfig{
		Name:     SessionCookieName,
		MaxAge:   int(ttl.Seconds()),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	}
}

// NewSessionCookie builds the cookie for sessionID.
func NewSessionCookie(sessionID string, cfg CookieConfig) (*http.Cookie, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	return &http.Cookie{
		Name:     cfg.Name,
		Value:    sessionID,
		Path:     cfg.Path,
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}, nil
}

// ParseSessionCookie returns the session id carried by r.
func ParseSessionCookie(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}

// ClearSessionCookie returns a cookie that makes the browser drop the
// session cookie.
func ClearSessionCookie(cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}
