package recorder

import (
	"errors"
	"strings"

	"vitals_backend/analysis"
)

var (
	// ErrAlreadyRecording is returned by Start while a worker is active.
	ErrAlreadyRecording = errors.New("正在錄影中，請稍候...")
	// ErrDurationNotInteger is returned by ParseDuration for non-integer input.
	ErrDurationNotInteger = errors.New("錄影時間必須是整數")
	// ErrInvalidDuration is returned for durations outside [MinDuration, MaxDuration].
	ErrInvalidDuration = errors.New("錄影時間必須在 5-60 秒之間")
	// ErrNoCamera is matched by every *CameraError.
	ErrNoCamera = errors.New("無法開啟網路攝影機")
	// ErrSessionClosed is returned by Start after Close.
	ErrSessionClosed = errors.New("錄影服務已關閉")
	// ErrNoFrames means the capture loop ended without a single frame.
	ErrNoFrames = errors.New("未捕捉到任何畫面，請檢查攝影機")
)

// EncodeError wraps a failure to write the recording to disk.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return e.Err.Error() }

func (e *EncodeError) Unwrap() error { return e.Err }

// isResourceFailure reports whether err came from the camera or the
// encoder rather than from the analysis pipeline.
func isResourceFailure(err error) bool {
	var encErr *EncodeError
	return errors.Is(err, ErrNoCamera) || errors.Is(err, ErrNoFrames) || errors.As(err, &encErr)
}

// CameraError lists every index that was tried and why it failed, plus the
// capture devices visible on the system.
type CameraError struct {
	Attempts []string
	Devices  []string
}

func (e *CameraError) Error() string {
	var b strings.Builder
	b.WriteString(ErrNoCamera.Error())
	b.WriteString("\n")
	if len(e.Devices) > 0 {
		b.WriteString("系統攝影機設備: [")
		b.WriteString(strings.Join(e.Devices, ", "))
		b.WriteString("]")
	} else {
		b.WriteString("未找到系統攝影機設備")
	}
	b.WriteString("\n錯誤詳情:\n")
	b.WriteString(strings.Join(e.Attempts, "\n"))
	return b.String()
}

func (e *CameraError) Is(target error) bool {
	return target == ErrNoCamera
}

// IsValidation reports whether err is a caller mistake (HTTP 400) rather
// than a resource failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrDurationNotInteger) ||
		errors.Is(err, ErrInvalidDuration) ||
		analysis.IsValidation(err)
}
