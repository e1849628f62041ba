package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileTimestampLayout is the YYYYMMDD_HHMMSS stamp used in artifact file names.
const FileTimestampLayout = "20060102_150405"

// FileTimestamp formats t for use in a file name.
func FileTimestamp(t time.Time) string {
	return t.Format(FileTimestampLayout)
}

// DataLayout describes where the application keeps its artifacts.
//
//	data/
//	  videos/            webcam recordings
//	  results/upload/    JSON analysis records for uploads
//	  results/webcam/    JSON analysis records for webcam sessions
//	  logs/
//	  vitals.db          analysis history
type DataLayout struct {
	Root string
}

// NewDataLayout returns the layout rooted at root.
func NewDataLayout(root string) DataLayout {
	return DataLayout{Root: root}
}

// VideosDir is where webcam recordings are written.
func (l DataLayout) VideosDir() string { return filepath.Join(l.Root, "videos") }

// UploadResultsDir holds analysis records for uploaded videos.
func (l DataLayout) UploadResultsDir() string { return filepath.Join(l.Root, "results", "upload") }

// WebcamResultsDir holds analysis records for webcam recordings.
func (l DataLayout) WebcamResultsDir() string { return filepath.Join(l.Root, "results", "webcam") }

// LogsDir holds rotated log files.
func (l DataLayout) LogsDir() string { return filepath.Join(l.Root, "logs") }

// DatabasePath is the sqlite history file.
func (l DataLayout) DatabasePath() string { return filepath.Join(l.Root, "vitals.db") }

// Dirs lists every directory the application writes into.
func (l DataLayout) Dirs() []string {
	return []string{l.VideosDir(), l.UploadResultsDir(), l.WebcamResultsDir(), l.LogsDir()}
}

// Ensure creates every directory in the layout. It is safe to call repeatedly.
func (l DataLayout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
