package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures NewLogger.
type Options struct {
	// Level is the LOG_LEVEL string ("debug", "info", "warn", "error").
	// Empty selects debug in development and info otherwise.
	Level string

	// Development switches the console to colored human-readable output.
	Development bool

	// FilePath is the rotating JSON log file. Empty disables file output.
	FilePath string

	// File tunes rotation. Zero values use the package defaults.
	File FileWriterConfig

	// Console overrides the console sink. Nil means stdout.
	Console zapcore.WriteSyncer
}

// Logger wraps zap.Logger with a runtime-adjustable level and automatic
// credential redaction. Components receive the underlying *zap.Logger via
// Zap() or Named().
//
// Example:
//
//	logger, err := NewLogger(Options{Development: true, FilePath: "data/logs/vitals.log"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("server started", zap.String("addr", ":8894"))
type Logger struct {
	zap      *zap.Logger
	level    zap.AtomicLevel
	isDev    bool
	filePath string
}

// NewLogger creates a Logger that writes to the console and, when
// opts.FilePath is set, to a lumberjack-rotated JSON file.
func NewLogger(opts Options) (*Logger, error) {
	defaultLevel := zapcore.InfoLevel
	if opts.Development {
		defaultLevel = zapcore.DebugLevel
	}
	level := zap.NewAtomicLevelAt(ParseLogLevel(opts.Level, defaultLevel))

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}

	var fileWriter zapcore.WriteSyncer
	if opts.FilePath != "" {
		w, err := NewFileWriter(opts.FilePath, opts.File)
		if err != nil {
			return nil, err
		}
		fileWriter = w
	}

	core := NewRedactingCore(NewMultiCore(level, console, fileWriter, opts.Development))
	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return &Logger{
		zap:      zapLogger,
		level:    level,
		isDev:    opts.Development,
		filePath: opts.FilePath,
	}, nil
}

// NewNop returns a Logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Zap returns the underlying zap logger without the wrapper's caller skip.
func (l *Logger) Zap() *zap.Logger {
	return l.zap.WithOptions(zap.AddCallerSkip(-1))
}

// Named returns a component logger, e.g. logger.Named("recorder").
func (l *Logger) Named(name string) *zap.Logger {
	return l.Zap().Named(name)
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// IsDevelopment reports whether the logger was built for development.
func (l *Logger) IsDevelopment() bool {
	return l.isDev
}

// LogFilePath returns the log file path, or "" when file output is disabled.
func (l *Logger) LogFilePath() string {
	return l.filePath
}

// Sync flushes any buffered log entries.
// Applications should call Sync before exiting to ensure all logs are written.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// Fatal logs a message at FatalLevel then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, fields...)
}

// With creates a child logger carrying additional fields.
//
// Example:
//
//	reqLogger := logger.With(zap.String("request_id", id))
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:      l.zap.With(fields...),
		level:    l.level,
		isDev:    l.isDev,
		filePath: l.filePath,
	}
}
