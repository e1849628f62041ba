package auth

import (
	"net/http"

	"go.uber.org/zap"

	"vitals_backend/webui"
)

// LogoutHandler destroys the session and returns to the login page. It is
// idempotent: a missing or unknown session still ends on the login page.
func (m *AuthMiddleware) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if id, err := ParseSessionCookie(r, m.cookieConfig.Name); err == nil {
			m.sessions.Delete(id)
			m.logger.Info("logged out",
				zap.String("session_id", shortID(id)),
				zap.String("ip", webui.ClientIP(r)))
		}
		http.SetCookie(w, ClearSessionCookie(m.cookieConfig))

		code := http.StatusFound
		if r.Method == http.MethodPost {
			code = http.StatusSeeOther
		}
		http.Redirect(w, r, LoginPath, code)
	}
}
