package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"vitals_backend/webui"
)

const (
	// DefaultMaxAttempts is how many failed logins an IP gets before it must wait.
	DefaultMaxAttempts = 5

	// DefaultAttemptInterval is how often one more attempt is granted back.
	DefaultAttemptInterval = time.Minute

	// DefaultFailedLoginDelay slows each failed login down.
	DefaultFailedLoginDelay = time.Second
)

// Config holds options for the AuthMiddleware.
type Config struct {
	// Title is shown on the login page.
	Title string

	// SessionTTL is how long a login stays valid (default 24h).
	SessionTTL time.Duration

	// MaxAttempts and AttemptInterval shape the per-IP login token bucket.
	MaxAttempts     int
	AttemptInterval time.Duration

	// FailedLoginDelay is slept after each rejected password. Negative disables it.
	FailedLoginDelay time.Duration

	// SecureCookies sets the Secure flag (enable behind HTTPS).
	SecureCookies bool

	// BcryptCost overrides DefaultCost.
	BcryptCost int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:       webui.DefaultLoginSessionTTL,
		MaxAttempts:      DefaultMaxAttempts,
		AttemptInterval:  DefaultAttemptInterval,
		FailedLoginDelay: DefaultFailedLoginDelay,
		BcryptCost:       DefaultCost,
	}
}

// AuthMiddleware protects the UI with a single shared password. It
// implements webui.AuthProvider.
type AuthMiddleware struct {
	title        string
	passwordHash string
	sessions     *webui.SessionStore
	limiter      *webui.RateLimiter
	cookieConfig CookieConfig
	failDelay    time.Duration
	logger       *zap.Logger
}

var _ webui.AuthProvider = (*AuthMiddleware)(nil)

// NewAuthMiddleware hashes password and builds the session store and login
// limiter. Zero fields in cfg take their defaults.
func NewAuthMiddleware(password string, logger *zap.Logger, cfg Config) (*AuthMiddleware, error) {
	def := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AttemptInterval <= 0 {
		cfg.AttemptInterval = def.AttemptInterval
	}
	if cfg.FailedLoginDelay == 0 {
		cfg.FailedLoginDelay = def.FailedLoginDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hash, err := HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	cookieConfig := DefaultCookieConfig(cfg.SessionTTL)
	cookieConfig.Secure = cfg.SecureCookies

	return &AuthMiddleware{
		title:        cfg.Title,
		passwordHash: hash,
		sessions:     webui.NewSessionStore(cfg.SessionTTL),
		limiter:      webui.NewRateLimiter(cfg.AttemptInterval, cfg.MaxAttempts),
		cookieConfig: cookieConfig,
		failDelay:    max(cfg.FailedLoginDelay, 0),
		logger:       logger.Named("auth"),
	}, nil
}

// Middleware lets requests with a live session through. A browser page
// load is redirected to the login page; anything else gets 401.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Debug("unauthenticated request",
			zap.String("path", r.URL.Path),
			zap.String("ip", webui.ClientIP(r)))

		if wantsHTML(r) {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"請先登入"}`))
	})
}

// StartCleanup evicts expired sessions and idle limiter entries until ctx
// is done.
func (m *AuthMiddleware) StartCleanup(ctx context.Context, interval time.Duration) {
	m.sessions.StartCleanupTicker(ctx, interval)
	m.limiter.StartCleanupTicker(ctx, interval, m.sessions.TTL())
}

// Sessions exposes the session store.
func (m *AuthMiddleware) Sessions() *webui.SessionStore {
	return m.sessions
}

func (m *AuthMiddleware) authenticated(r *http.Request) bool {
	id, err := ParseSessionCookie(r, m.cookieConfig.Name)
	if err != nil {
		return false
	}
	_, err = m.sessions.Get(id)
	return err == nil
}

func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// shortID trims a session id for logs.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
