// Package results persists one JSON record per completed analysis.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"vitals_backend/core"
	"vitals_backend/detection"
)

// Source identifies where a video came from.
type Source string

const (
	SourceUpload Source = "upload"
	SourceWebcam Source = "webcam"
)

// Record is the on-disk analysis record.
type Record struct {
	Timestamp   string                 `json:"timestamp"`
	VideoSource Source                 `json:"video_source"`
	VideoPath   string                 `json:"video_path"`
	Method      string                 `json:"method"`
	RawResult   []detection.FaceResult `json:"raw_result"`
	Summary     RecordSummary          `json:"summary"`
}

// RecordSummary is the short header written with every record.
type RecordSummary struct {
	FacesDetected    int    `json:"faces_detected"`
	ProcessingStatus string `json:"processing_status"`
}

// Store writes records under the data layout's results directories.
type Store struct {
	layout core.DataLayout
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates a Store rooted at layout.
func NewStore(layout core.DataLayout, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{layout: layout, now: time.Now, logger: logger}
}

// Save writes the raw detector output for one method and returns the file path.
func (s *Store) Save(source Source, videoPath, method string, faces []detection.FaceResult) (string, error) {
	timestamp := core.FileTimestamp(s.now())
	prefix, dir := s.destination(source, videoPath)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", prefix, SafeMethodName(method), timestamp))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	if faces == nil {
		faces = []detection.FaceResult{}
	}
	record := Record{
		Timestamp:   timestamp,
		VideoSource: source,
		VideoPath:   videoPath,
		Method:      method,
		RawResult:   faces,
		Summary: RecordSummary{
			FacesDetected:    len(faces),
			ProcessingStatus: "success",
		},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("encode analysis record: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write analysis record: %w", err)
	}

	s.logger.Info("analysis record saved",
		zap.String("path", path),
		zap.String("method", method),
		zap.Int("faces", len(faces)))
	return path, nil
}

// Load reads a record back.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &rec, nil
}

// destination picks the file prefix and directory. Webcam wins over upload
// when both hints are present.
func (s *Store) destination(source Source, videoPath string) (prefix, dir string) {
	switch {
	case source == SourceWebcam || strings.Contains(videoPath, "webcam"):
		return "webcam_analysis", s.layout.WebcamResultsDir()
	case source == SourceUpload || strings.Contains(videoPath, "upload"):
		return "upload_analysis", s.layout.UploadResultsDir()
	default:
		return "analysis_result", s.layout.UploadResultsDir()
	}
}

// SafeMethodName turns a method label into a file-name fragment:
// lower case, spaces to "_", slashes to "-".
func SafeMethodName(method string) string {
	safe := strings.ToLower(method)
	safe = strings.ReplaceAll(safe, " ", "_")
	return strings.ReplaceAll(safe, "/", "-")
}
