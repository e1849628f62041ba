package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log output to a console writer and a file writer.
//
// The file output always uses JSON encoding for structured log processing.
// The console output is colored and human readable in development, JSON otherwise.
// A nil fileWriter yields a console-only core.
//
// Example:
//
//	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
//	core := NewMultiCore(level, zapcore.Lock(os.Stdout), fileWriter, true)
//	logger := zap.New(core)
func NewMultiCore(level zapcore.LevelEnabler, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	if fileWriter == nil {
		return consoleCore
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)
	return zapcore.NewTee(consoleCore, fileCore)
}
