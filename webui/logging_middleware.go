package webui

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by LoggingMiddleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingMiddleware logs every HTTP request with method, path, status,
// duration and a request id. Thread-safe.
type LoggingMiddleware struct {
	logger    *zap.Logger
	skipPaths map[string]bool
	now       func() time.Time
}

// LoggingMiddlewareConfig holds configuration for the LoggingMiddleware.
type LoggingMiddlewareConfig struct {
	// SkipPaths are not logged (e.g. health checks). They still get a request id.
	SkipPaths []string

	// LogUserAgent adds the user agent field.
	LogUserAgent bool
}

// NewLoggingMiddleware creates the middleware. A nil logger discards output.
func NewLoggingMiddleware(logger *zap.Logger, config LoggingMiddlewareConfig) *LoggingMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skipPaths[p] = true
	}
	return &LoggingMiddleware{
		logger:    logger,
		skipPaths: skipPaths,
		now:       time.Now,
	}
}

// Handler wraps next. An incoming X-Request-ID is kept; otherwise a new
// uuid is generated. The id is echoed in the response header.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := m.now()
		wrapped := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := m.now().Sub(start)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", duration),
			zap.String("remote_addr", getClientIP(r)),
			zap.Int64("bytes", wrapped.bytesWritten),
		}
		m.logger.Check(levelForStatus(wrapped.statusCode), "http request").Write(fields...)
	})
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// responseWriterWrapper captures the status code and response size.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the websocket upgrade pass through the middleware.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.wroteHeader = true
	w.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// getClientIP prefers proxy headers, then RemoteAddr without the port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP is getClientIP for other packages (auth).
func ClientIP(r *http.Request) string {
	return getClientIP(r)
}
