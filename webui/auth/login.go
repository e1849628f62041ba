package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vitals_backend/webui"
)

const (
	// LoginPath serves the login form and accepts its submission.
	LoginPath = "/login"

	// SuccessRedirect is where a successful login lands.
	SuccessRedirect = "/"
)

// Messages shown on the login page after a rejected attempt.
const (
	msgPasswordRequired = "請輸入密碼"
	msgInvalidPassword  = "密碼錯誤"
	msgTooManyAttempts  = "嘗試次數過多，請稍後再試"
)

// LoginHandler serves GET (form) and POST (authenticate) on /login.
func (m *AuthMiddleware) LoginHandler() http.HandlerFunc {
	page := webui.LoginPageHandler(m.title)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			if m.authenticated(r) {
				http.Redirect(w, r, SuccessRedirect, http.StatusFound)
				return
			}
			page(w, r)
		case http.MethodPost:
			m.handleLogin(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, POST")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (m *AuthMiddleware) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := webui.ClientIP(r)

	if blocked, wait := m.limiter.Blocked(ip); blocked {
		m.logger.Warn("login rate limit exceeded",
			zap.String("ip", ip),
			zap.Duration("retry_after", wait))
		w.Header().Set("Retry-After", formatRetryAfter(wait))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		webui.RenderLoginPage(w, webui.LoginPageData{Title: m.title, Error: msgTooManyAttempts})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	password := r.PostFormValue("password")
	if password == "" {
		m.fail(w, r, msgPasswordRequired)
		return
	}
	if err := VerifyPassword(password, m.passwordHash); err != nil {
		m.limiter.RecordAttempt(ip)
		m.logger.Info("login failed", zap.String("ip", ip))
		m.fail(w, r, msgInvalidPassword)
		return
	}

	session, err := m.sessions.Create()
	if err != nil {
		m.logger.Error("create session", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	cookie, err := NewSessionCookie(session.ID, m.cookieConfig)
	if err != nil {
		m.logger.Error("create session cookie", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.limiter.Reset(ip)
	http.SetCookie(w, cookie)
	m.logger.Info("login succeeded",
		zap.String("ip", ip),
		zap.String("session_id", shortID(session.ID)),
		zap.Time("expires_at", session.ExpiresAt))

	http.Redirect(w, r, SuccessRedirect, http.StatusSeeOther)
}

// fail delays, then sends the browser back to the form with msg.
func (m *AuthMiddleware) fail(w http.ResponseWriter, r *http.Request, msg string) {
	if m.failDelay > 0 {
		select {
		case <-time.After(m.failDelay):
		case <-r.Context().Done():
			return
		}
	}
	http.Redirect(w, r, LoginPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

func formatRetryAfter(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
