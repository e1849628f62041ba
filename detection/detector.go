package detection

import "context"

// Request is one detection call.
type Request struct {
	VideoPath string
	Method    Method
	APIKey    string
}

// Detector estimates vital signs from a face-containing video. An empty,
// nil-error result means no usable face was found. Failures are returned as
// *Error so callers can switch on Kind.
type Detector interface {
	Detect(ctx context.Context, req Request) ([]FaceResult, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, req Request) ([]FaceResult, error)

func (f DetectorFunc) Detect(ctx context.Context, req Request) ([]FaceResult, error) {
	return f(ctx, req)
}
