package webui

import (
	"html/template"
	"io"
	"net/http"

	"vitals_backend/core"
)

// loginPageHTML is self-contained so it renders before any session exists.
const loginPageHTML = `<!DOCTYPE html>
<html lang="zh-Hant">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - 登入</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Noto Sans TC', sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            background: #0f172a;
            color: #e2e8f0;
        }
        .login-container {
            background: #1e293b;
            border: 1px solid #334155;
            border-radius: 16px;
            padding: 40px;
            width: 100%;
            max-width: 380px;
        }
        h1 { font-size: 22px; margin-bottom: 24px; text-align: center; }
        form { display: flex; flex-direction: column; gap: 16px; }
        input, button {
            font: inherit;
            padding: 12px 14px;
            border-radius: 8px;
            border: 1px solid #475569;
            background: #0f172a;
            color: inherit;
        }
        button { background: #2563eb; border-color: #2563eb; cursor: pointer; }
        .error-message {
            padding: 10px 14px;
            font-size: 14px;
            color: #fca5a5;
            background: rgba(239, 68, 68, 0.15);
            border-radius: 8px;
            text-align: center;
            display: {{if .Error}}block{{else}}none{{end}};
        }
    </style>
</head>
<body>
    <div class="login-container">
        <h1>{{.Title}}</h1>
        <form method="POST" action="/login">
            <div class="error-message">{{.Error}}</div>
            <input type="password" name="password" placeholder="密碼" required autofocus>
            <button type="submit">登入</button>
        </form>
    </div>
</body>
</html>`

// LoginPageData holds the data passed to the login page template.
type LoginPageData struct {
	Title string
	Error string
}

var loginTemplate = template.Must(template.New("login").Parse(loginPageHTML))

// RenderLoginPage writes the login page HTML.
func RenderLoginPage(w io.Writer, data LoginPageData) error {
	if data.Title == "" {
		data.Title = core.DefaultAppTitle
	}
	return loginTemplate.Execute(w, data)
}

// LoginPageHandler renders the login page with title, showing the
// "error" query parameter set by a failed attempt.
func LoginPageHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

		data := LoginPageData{Title: title, Error: r.URL.Query().Get("error")}
		if err := RenderLoginPage(w, data); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
