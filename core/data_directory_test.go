package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDataLayout_Ensure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	layout := NewDataLayout(root)

	// Idempotent: second call must not fail on existing directories.
	for i := 0; i < 2; i++ {
		if err := layout.Ensure(); err != nil {
			t.Fatalf("Ensure() call %d error = %v", i+1, err)
		}
	}

	for _, dir := range layout.Dirs() {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected %s to exist: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	if layout.UploadResultsDir() != filepath.Join(root, "results", "upload") {
		t.Errorf("UploadResultsDir() = %q", layout.UploadResultsDir())
	}
	if layout.WebcamResultsDir() != filepath.Join(root, "results", "webcam") {
		t.Errorf("WebcamResultsDir() = %q", layout.WebcamResultsDir())
	}
}

func TestFileTimestamp(t *testing.T) {
	ts := time.Date(2025, 9, 19, 16, 36, 55, 0, time.UTC)
	if got := FileTimestamp(ts); got != "20250919_163655" {
		t.Errorf("FileTimestamp() = %q, want 20250919_163655", got)
	}
}
