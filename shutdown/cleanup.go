package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"vitals_backend/core"
)

// UploadTempPattern matches the files the upload handler streams videos
// into while they are analysed.
const UploadTempPattern = "vitals-upload-*"

// CleanupTempFiles returns a shutdown function that removes files matching
// pattern in dir. Uploads interrupted by shutdown would otherwise leave
// their temp copies behind.
//
//	manager.Register("upload-temp", shutdown.PriorityFiles,
//		shutdown.CleanupTempFiles(logger, os.TempDir(), shutdown.UploadTempPattern))
func CleanupTempFiles(logger *zap.Logger, dir, pattern string) core.ShutdownFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		removeMatching(ctx, logger, dir, pattern)
		return nil
	}
}

// removeMatching deletes what it can and logs the rest; a leftover temp
// file must not block shutdown. It returns the number of files removed.
func removeMatching(ctx context.Context, logger *zap.Logger, dir, pattern string) int {
	glob := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(glob)
	if err != nil {
		logger.Error("Failed to list temporary files",
			zap.String("pattern", glob),
			zap.Error(err),
		)
		return 0
	}
	if len(matches) == 0 {
		logger.Debug("No temporary files to clean up", zap.String("directory", dir))
		return 0
	}

	var removed, failed int
	for _, match := range matches {
		if ctx.Err() != nil {
			logger.Warn("Shutdown context cancelled during cleanup",
				zap.Int("removed", removed),
				zap.Int("remaining", len(matches)-removed-failed),
			)
			return removed
		}

		info, err := os.Lstat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if err := os.Remove(match); err != nil {
			failed++
			logger.Warn("Failed to remove temporary file",
				zap.String("file", filepath.Base(match)),
				zap.Error(err),
			)
			continue
		}
		removed++
	}

	logger.Info("Temp file cleanup complete",
		zap.String("directory", dir),
		zap.Int("removed", removed),
		zap.Int("failed", failed),
	)
	return removed
}

// SyncLogger flushes buffered log entries. Syncing a terminal stdout fails
// with EINVAL or ENOTTY on most platforms; those errors are dropped.
func SyncLogger(sync func() error) core.ShutdownFunc {
	return func(context.Context) error {
		err := sync()
		if err == nil {
			return nil
		}
		msg := err.Error()
		if strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl") {
			return nil
		}
		return err
	}
}
