package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"vitals_backend/core"
)

// DefaultMinFreeBytes is the free space below which the suite warns. One
// upload plus its encoded webcam counterpart and JSON records fit easily.
const DefaultMinFreeBytes = 1 * core.BytesPerGB

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path        string
	Total       int64
	Free        int64
	Used        int64
	UsedPercent float64
}

// DiskSpaceError reports too little free space.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, core.FormatBytes(e.Required), core.FormatBytes(e.Available))
}

// GetDiskSpace returns disk usage for the filesystem containing path. A
// path that does not exist yet is resolved through its nearest existing
// parent.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	for {
		info, err := os.Stat(abs)
		if err == nil {
			if !info.IsDir() {
				abs = filepath.Dir(abs)
			}
			break
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot access path %s: %w", abs, err)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, fmt.Errorf("cannot access path %s: %w", path, err)
		}
		abs = parent
	}

	total, free, err := getDiskSpace(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk space for %s: %w", abs, err)
	}

	used := total - free
	var usedPercent float64
	if total > 0 {
		usedPercent = float64(used) / float64(total) * 100
	}
	return &DiskSpaceInfo{Path: abs, Total: total, Free: free, Used: used, UsedPercent: usedPercent}, nil
}

// CheckDiskSpace returns a *DiskSpaceError when path has less than
// requiredBytes free.
func CheckDiskSpace(path string, requiredBytes int64) (*DiskSpaceInfo, error) {
	info, err := GetDiskSpace(path)
	if err != nil {
		return nil, err
	}
	if info.Free < requiredBytes {
		return info, &DiskSpaceError{Path: info.Path, Required: requiredBytes, Available: info.Free}
	}
	return info, nil
}
