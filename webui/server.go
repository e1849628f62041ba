// Package webui serves the browser front end and the JSON API: video upload
// analysis, webcam recording control, the status websocket and analysis
// history.
package webui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"vitals_backend/analysis"
	"vitals_backend/db"
	"vitals_backend/metrics"
	"vitals_backend/recorder"
	"vitals_backend/webui/static"
)

// AuthProvider protects routes. The auth package implements it; a nil
// provider leaves the UI open.
type AuthProvider interface {
	Middleware(next http.Handler) http.Handler
	LoginHandler() http.HandlerFunc
	LogoutHandler() http.HandlerFunc
}

// VideoProcessor runs the analysis pipeline on a stored video.
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, req analysis.Request) (*analysis.BatchResult, error)
}

// Recorder is the webcam recording session.
type Recorder interface {
	Start(ctx context.Context, req recorder.StartRequest) (recorder.Response, error)
	Stop(ctx context.Context) recorder.Response
	Poll() recorder.Response
}

// HistoryLister reads recent analysis rows.
type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]db.HistoryEntry, error)
}

// StatsProvider reports detector run statistics.
type StatsProvider interface {
	Snapshot() metrics.Snapshot
}

// PageConfig is what the index page shows.
type PageConfig struct {
	Title            string
	Methods          []string
	DefaultMethod    string
	APIKeyConfigured bool
	MaxFileSizeMB    int64
	MaxVideoDuration int
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host string
	Port int

	// ReadTimeout must cover a full upload at the size ceiling.
	ReadTimeout time.Duration

	// WriteTimeout must cover detection, which runs inside the request.
	WriteTimeout time.Duration

	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Page PageConfig

	// MaxUploadBytes is the video size ceiling enforced while streaming.
	MaxUploadBytes int64

	// UploadRatePerMinute limits uploads per client IP; <= 0 disables it.
	UploadRatePerMinute int

	// TempDir receives uploads while they are analysed ("" = os.TempDir).
	TempDir string

	// DefaultWebcamDuration applies when the start form omits duration.
	DefaultWebcamDuration int

	CORSOrigins  []string
	LogSkipPaths []string
	Static       StaticAssetConfig
}

// DefaultServerConfig returns defaults matching the application config.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:                  "0.0.0.0",
		Port:                  8894,
		ReadTimeout:           5 * time.Minute,
		WriteTimeout:          15 * time.Minute,
		IdleTimeout:           120 * time.Second,
		ShutdownTimeout:       30 * time.Second,
		MaxUploadBytes:        50 * 1024 * 1024,
		UploadRatePerMinute:   30,
		DefaultWebcamDuration: 15,
		LogSkipPaths:          []string{"/health", "/api/webcam/status"},
		Static:                DefaultStaticAssetConfig(),
	}
}

// Deps are the components the handlers call.
type Deps struct {
	Processor VideoProcessor
	Recorder  Recorder
	History   HistoryLister
	Hub       *StatusHub
	Stats     StatsProvider
	Auth      AuthProvider
	Logger    *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	httpServer    *http.Server
	mux           *http.ServeMux
	config        ServerConfig
	logger        *zap.Logger
	processor     VideoProcessor
	recorder      Recorder
	history       HistoryLister
	hub           *StatusHub
	stats         StatsProvider
	authProvider  AuthProvider
	uploadLimiter *RateLimiter
	loggingMw     *LoggingMiddleware
	staticHandler *StaticAssetHandler
	pageTemplate  *template.Template
	startedAt     time.Time
	now           func() time.Time
}

// NewServer wires routes and middleware. Processor, Recorder and Hub are
// required.
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Processor == nil || deps.Recorder == nil || deps.Hub == nil {
		return nil, errors.New("webui: processor, recorder and status hub are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultWebcamDuration <= 0 {
		config.DefaultWebcamDuration = 15
	}

	page, err := static.ReadFile("index.html")
	if err != nil {
		return nil, fmt.Errorf("webui: read index template: %w", err)
	}
	tmpl, err := template.New("index").Parse(string(page))
	if err != nil {
		return nil, fmt.Errorf("webui: parse index template: %w", err)
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		logger:        logger,
		processor:     deps.Processor,
		recorder:      deps.Recorder,
		history:       deps.History,
		hub:           deps.Hub,
		stats:         deps.Stats,
		authProvider:  deps.Auth,
		uploadLimiter: NewPerMinuteLimiter(config.UploadRatePerMinute),
		loggingMw:     NewLoggingMiddleware(logger, LoggingMiddlewareConfig{SkipPaths: config.LogSkipPaths}),
		staticHandler: NewStaticAssetHandler(config.Static),
		pageTemplate:  tmpl,
		now:           time.Now,
	}
	s.startedAt = s.now()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	logger.Info("web server created",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("auth_enabled", deps.Auth != nil),
		zap.Int64("max_upload_mb", config.MaxUploadBytes/(1024*1024)))
	return s, nil
}

func (s *Server) setupRoutes() {
	// Open routes.
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.authProvider != nil {
		s.mux.Handle("/login", s.authProvider.LoginHandler())
		s.mux.Handle("/logout", s.authProvider.LogoutHandler())
	}

	// Protected routes.
	s.mux.Handle("GET /{$}", s.protect(s.handleIndex))
	s.mux.Handle(s.staticHandler.prefix+"/", s.protectHandler(s.staticHandler))
	s.mux.Handle("POST /api/process-video", s.protect(s.handleProcessVideo))
	s.mux.Handle("POST /api/webcam/start", s.protect(s.handleWebcamStart))
	s.mux.Handle("POST /api/webcam/stop", s.protect(s.handleWebcamStop))
	s.mux.Handle("GET /api/webcam/status", s.protect(s.handleWebcamStatus))
	s.mux.Handle("GET /api/history", s.protect(s.handleHistory))
	s.mux.Handle("GET /api/stats", s.protect(s.handleStats))
	s.mux.Handle("GET /ws/status", s.protect(s.hub.HandleConnection))
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	return s.protectHandler(h)
}

func (s *Server) protectHandler(h http.Handler) http.Handler {
	if s.authProvider == nil {
		return h
	}
	return s.authProvider.Middleware(h)
}

// Handler returns the full middleware chain: request logging, then CORS,
// then routing.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	if len(s.config.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{RequestIDHeader},
			AllowCredentials: true,
		}).Handler(handler)
	}
	return s.loggingMw.Handler(handler)
}

// Start listens until Shutdown. ctx bounds the background cleanup tickers.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.uploadLimiter != nil {
		s.uploadLimiter.StartCleanupTicker(ctx, 5*time.Minute, 10*time.Minute)
	}

	s.logger.Info("web server starting", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown disconnects websocket clients and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	s.hub.Close()

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	s.logger.Info("web server stopped",
		zap.String("uptime", FormatDuration(s.now().Sub(s.startedAt))))
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// HasAuth reports whether password protection is on.
func (s *Server) HasAuth() bool {
	return s.authProvider != nil
}

func (s *Server) tempDir() string {
	if s.config.TempDir != "" {
		return s.config.TempDir
	}
	return os.TempDir()
}
