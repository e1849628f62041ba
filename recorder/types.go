package recorder

import (
	"strconv"
	"strings"

	"vitals_backend/report"
)

// Duration bounds in seconds.
const (
	MinDuration     = 5
	MaxDuration     = 60
	DefaultDuration = 10
)

// State is what Start, Stop and Poll report to the caller.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateCompleted State = "completed"
)

// ResultStatus classifies a finished recording.
type ResultStatus string

const (
	ResultComplete ResultStatus = "complete"
	// ResultFailed covers every expected failure: no camera, no frames,
	// an encode error, or a detector run that found no face or failed.
	ResultFailed ResultStatus = "failed"
	// ResultError is an unexpected error from the analysis pipeline itself.
	ResultError ResultStatus = "error"
)

// Result is the outcome of one recording. It is built once by the worker
// and never modified afterwards.
type Result struct {
	Status     ResultStatus
	Message    string
	ResultText string
	PlotImage  string
	Metrics    report.Metrics
	VideoPath  string
}

// Response is returned by Start, Stop and Poll. Result fields are only set
// for StateCompleted.
type Response struct {
	State        State          `json:"state"`
	Message      string         `json:"message"`
	SessionID    string         `json:"session_id,omitempty"`
	Phase        string         `json:"phase,omitempty"`
	ResultStatus ResultStatus   `json:"result_status,omitempty"`
	ResultText   string         `json:"result_text,omitempty"`
	PlotImage    string         `json:"plot_image,omitempty"`
	Metrics      report.Metrics `json:"metrics,omitempty"`
}

// StartRequest configures one recording. Duration is in seconds; zero
// selects DefaultDuration.
type StartRequest struct {
	Method   string
	APIKey   string
	Duration int
}

// ParseDuration converts user input into seconds. Empty input yields 0,
// which Start replaces with DefaultDuration.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrDurationNotInteger
	}
	return n, nil
}
