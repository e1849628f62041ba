package detection

import "strings"

// ClassifyMessage maps free-form detector output onto an ErrorKind by
// substring matching. It exists only for detectors that report failures as
// plain text (stderr, exception reprs) instead of the structured error
// object. New code should produce an *Error directly.
func ClassifyMessage(message string) ErrorKind {
	switch {
	case strings.Contains(message, "truth value of an array"):
		return KindShortOrUnclearVideo
	case strings.Contains(message, "Problem probing video") && strings.Contains(message, "NoneType"):
		return KindUnsupportedFormat
	case strings.Contains(message, "No face detected"):
		return KindNoFace
	case strings.Contains(message, "API") && strings.Contains(message, "key"):
		return KindCredential
	default:
		return KindUnknown
	}
}

// Classify wraps message in an *Error using ClassifyMessage.
func Classify(message string) *Error {
	return &Error{Kind: ClassifyMessage(message), Message: strings.TrimSpace(message)}
}
