package analysis

import (
	"vitals_backend/detection"
	"vitals_backend/report"
	"vitals_backend/results"
)

// Status strings shown to the user.
const (
	StatusComplete          = "Processing Complete!"
	StatusFailed            = "Processing Failed"
	StatusCompletedWithErrs = "Processing Completed With Errors"
)

// NoFaceSummary is the diagnostic used when the detector returns no faces.
const NoFaceSummary = "Unable to detect valid facial data. Ensure the face is clear, lighting is good, " +
	"and the recording lasts at least 5 seconds."

// Request describes one video and the methods to run against it.
type Request struct {
	VideoPath string
	// FileName is the name shown to the user; defaults to the base of VideoPath.
	FileName string
	Methods  []string
	APIKey   string
	// Source picks the results directory and event channel only.
	Source results.Source
	// SkipDurationCheck bypasses the upload duration ceiling. Only the
	// webcam recorder sets it; its recordings are bounded by their own
	// duration limit.
	SkipDurationCheck bool
}

// Entry is the outcome of one method on one video.
type Entry struct {
	FileName     string                 `json:"file_name"`
	Method       string                 `json:"method"`
	DisplayName  string                 `json:"display_name"`
	Status       string                 `json:"status"`
	Summary      string                 `json:"summary"`
	ResultText   string                 `json:"result_text,omitempty"`
	PlotImage    string                 `json:"plot_image,omitempty"`
	Metrics      report.Metrics         `json:"metrics"`
	FaceNote     string                 `json:"face_note,omitempty"`
	RawResult    []detection.FaceResult `json:"raw_result"`
	AnalysisPath string                 `json:"analysis_path,omitempty"`
	ErrorKind    detection.ErrorKind    `json:"error_kind,omitempty"`
	HistoryID    string                 `json:"history_id,omitempty"`
}

// Succeeded reports whether the entry carries metrics from the detector.
func (e Entry) Succeeded() bool {
	return e.Status == StatusComplete
}

// BatchResult is returned by ProcessVideo.
type BatchResult struct {
	Status  string   `json:"status"`
	Results []Entry  `json:"results"`
	Errors  []string `json:"errors"`
}
