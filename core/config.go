package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values shared by the server, the CLI and the tests.
const (
	DefaultAppTitle          = "VitalLens 生命體徵檢測器"
	DefaultMethodLabel       = "POS (免費)"
	DefaultPort              = 8894
	DefaultMaxFileSizeMB     = 50
	DefaultMaxVideoSeconds   = 45
	DefaultDetectorCommand   = "vitallens-detect"
	DefaultDetectorTimeout   = 300
	DefaultCameraProbeCount  = 5
	DefaultCaptureFPS        = 30
	DefaultCaptureWidth      = 1280
	DefaultCaptureHeight     = 720
	DefaultUploadsPerMinute  = 30
	DefaultHistoryRetainDays = 30
)

// Config holds all configuration values
type Config struct {
	// Application
	AppTitle      string
	Host          string
	Port          int
	Environment   string
	CORSOrigins   []string
	WebUIPassword string

	// Detection service
	DefaultAPIKey   string
	DefaultMethod   string
	DetectorCommand string
	DetectorTimeout time.Duration

	// Upload limits
	MaxUploadBytes      int64
	MaxVideoDuration    time.Duration
	UploadRatePerMinute int

	// Webcam capture (empty strings select the per-OS ffmpeg defaults)
	FFmpegPath           string
	CameraInputFormat    string
	CameraDeviceTemplate string
	CameraProbeCount     int
	CaptureFPS           int
	CaptureWidth         int
	CaptureHeight        int

	// Storage
	DataDir          string
	HistoryRetention time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// LoadConfig loads configuration from the optional YAML file and the
// environment. Environment variables take precedence over file values.
func LoadConfig() (*Config, error) {
	path := os.Getenv("VITALS_CONFIG_FILE")
	optional := path == ""
	if optional {
		path = DefaultConfigFile
	}

	file, err := LoadConfigFile(path, optional)
	if err != nil {
		return nil, err
	}

	return LoadConfigFrom(Layered(EnvSource(), MapSource(file.Values())))
}

// LoadConfigFrom builds a Config from an arbitrary Source and validates it.
func LoadConfigFrom(src Source) (*Config, error) {
	port := src.Int("APP_PORT", DefaultPort)
	dataDir := src.String("DATA_DIR", "data")

	cfg := &Config{
		AppTitle:      src.String("APP_TITLE", DefaultAppTitle),
		Host:          src.String("APP_HOST", "0.0.0.0"),
		Port:          port,
		Environment:   strings.ToLower(src.String("ENVIRONMENT", "production")),
		CORSOrigins:   src.List("CORS_ALLOW_ORIGINS", defaultCORSOrigins(port)),
		WebUIPassword: src.String("WEBUI_PASSWORD", ""),

		DefaultAPIKey:   strings.TrimSpace(src.String("VITALLENS_API_KEY", "")),
		DefaultMethod:   src.String("DEFAULT_METHOD", DefaultMethodLabel),
		DetectorCommand: src.String("DETECTOR_COMMAND", DefaultDetectorCommand),
		DetectorTimeout: src.Seconds("DETECTOR_TIMEOUT_SECONDS", DefaultDetectorTimeout),

		MaxUploadBytes:      int64(src.Int("MAX_FILE_SIZE_MB", DefaultMaxFileSizeMB)) * 1024 * 1024,
		MaxVideoDuration:    src.Seconds("MAX_VIDEO_DURATION_SECONDS", DefaultMaxVideoSeconds),
		UploadRatePerMinute: src.Int("UPLOAD_RATE_PER_MINUTE", DefaultUploadsPerMinute),

		FFmpegPath:           src.String("FFMPEG_PATH", "ffmpeg"),
		CameraInputFormat:    src.String("CAMERA_INPUT_FORMAT", ""),
		CameraDeviceTemplate: src.String("CAMERA_DEVICE_TEMPLATE", ""),
		CameraProbeCount:     src.Int("CAMERA_PROBE_COUNT", DefaultCameraProbeCount),
		CaptureFPS:           src.Int("CAPTURE_FPS", DefaultCaptureFPS),
		CaptureWidth:         src.Int("CAPTURE_WIDTH", DefaultCaptureWidth),
		CaptureHeight:        src.Int("CAPTURE_HEIGHT", DefaultCaptureHeight),

		DataDir:          dataDir,
		HistoryRetention: time.Duration(src.Int("HISTORY_RETENTION_DAYS", DefaultHistoryRetainDays)) * 24 * time.Hour,

		LogLevel: src.String("LOG_LEVEL", "info"),
		LogFile:  src.String("LOG_FILE", filepath.Join(dataDir, "logs", "vitals.log")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. It returns the first problem found as a *ConfigError.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("APP_PORT", fmt.Sprint(c.Port), "must be between 1 and 65535")
	}
	if c.MaxUploadBytes <= 0 {
		return ErrInvalidValue("MAX_FILE_SIZE_MB", fmt.Sprint(c.MaxUploadBytes/(1024*1024)), "must be positive")
	}
	if c.MaxVideoDuration <= 0 {
		return ErrInvalidValue("MAX_VIDEO_DURATION_SECONDS", c.MaxVideoDuration.String(), "must be positive")
	}
	if c.CaptureFPS < 1 || c.CaptureFPS > 120 {
		return ErrInvalidValue("CAPTURE_FPS", fmt.Sprint(c.CaptureFPS), "must be between 1 and 120")
	}
	if c.CameraProbeCount < 1 || c.CameraProbeCount > 16 {
		return ErrInvalidValue("CAMERA_PROBE_COUNT", fmt.Sprint(c.CameraProbeCount), "must be between 1 and 16")
	}
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return ErrInvalidValue("CAPTURE_WIDTH/CAPTURE_HEIGHT", fmt.Sprintf("%dx%d", c.CaptureWidth, c.CaptureHeight), "must be positive")
	}
	if strings.TrimSpace(c.DetectorCommand) == "" {
		return ErrMissingConfig("DETECTOR_COMMAND")
	}
	if c.DetectorTimeout <= 0 {
		return ErrInvalidValue("DETECTOR_TIMEOUT_SECONDS", c.DetectorTimeout.String(), "must be positive")
	}
	return nil
}

// IsDevelopment reports whether console logging should be human friendly.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// MaxUploadMB returns the upload ceiling in whole megabytes for display.
func (c *Config) MaxUploadMB() int64 {
	return c.MaxUploadBytes / (1024 * 1024)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Layout returns the on-disk layout rooted at DataDir.
func (c *Config) Layout() DataLayout {
	return NewDataLayout(c.DataDir)
}

func defaultCORSOrigins(port int) []string {
	return []string{
		fmt.Sprintf("http://localhost:%d", port),
		fmt.Sprintf("https://localhost:%d", port),
		fmt.Sprintf("http://127.0.0.1:%d", port),
		fmt.Sprintf("https://127.0.0.1:%d", port),
	}
}
