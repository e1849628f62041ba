package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	testDir := filepath.Join(tmpDir, "testdir")
	if err := os.Mkdir(testDir, 0o755); err != nil {
		t.Fatalf("Failed to create test dir: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file", testFile, false},
		{"non-existent file", filepath.Join(tmpDir, "nonexistent.txt"), true},
		{"empty path", "", true},
		{"directory instead of file", testDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFileExists(tt.path)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("CheckFileExists(%q) unexpected error: %v", tt.path, err)
				}
				return
			}
			var fe *FileExistsError
			if !errors.As(err, &fe) {
				t.Errorf("CheckFileExists(%q) = %v, want *FileExistsError", tt.path, err)
			}
		})
	}
}
