package detection

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories reported by a Detector.
type ErrorKind string

const (
	KindUnknown             ErrorKind = "unknown"
	KindShortOrUnclearVideo ErrorKind = "short_or_unclear_video"
	KindUnsupportedFormat   ErrorKind = "unsupported_format"
	KindNoFace              ErrorKind = "no_face"
	KindCredential          ErrorKind = "credential"
	KindUnavailable         ErrorKind = "unavailable"
)

// ParseErrorKind maps a wire value onto the closed set; unrecognised values are KindUnknown.
func ParseErrorKind(s string) ErrorKind {
	switch k := ErrorKind(s); k {
	case KindShortOrUnclearVideo, KindUnsupportedFormat, KindNoFace, KindCredential, KindUnavailable:
		return k
	default:
		return KindUnknown
	}
}

// Error is returned by Detector implementations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detection %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("detection %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns text safe to show to an end user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindShortOrUnclearVideo:
		return "Video processing encountered data issues. Potential causes:\n" +
			"- Video too short (recommend at least 10 seconds)\n" +
			"- Face not clear enough\n" +
			"- Poor lighting\n" +
			"Please capture a longer, clearer video"
	case KindUnsupportedFormat:
		return "Video format compatibility issue detected. Try converting to MP4."
	case KindNoFace:
		return "No face detected. Please ensure the face is clearly visible with adequate lighting."
	case KindCredential:
		return "API Key error or quota exceeded. Please verify your VitalLens API settings."
	case KindUnavailable:
		return "Detection service is unavailable. Please try again later."
	}
	if e.Message != "" {
		return e.Message
	}
	return "Detection failed"
}

// KindOf returns the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// UserMessage renders any error for an end user. Detection errors use their
// category text; anything else is classified through the legacy shim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return Classify(err.Error()).UserMessage()
}
