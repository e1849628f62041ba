package report

import (
	"strings"

	"vitals_backend/detection"
)

// Metric keys produced by ExtractPrimaryMetrics.
const (
	MetricHeartRate                 = "heart_rate"
	MetricHeartRateConfidence       = "heart_rate_confidence"
	MetricRespiratoryRate           = "respiratory_rate"
	MetricRespiratoryRateConfidence = "respiratory_rate_confidence"
)

// Metrics maps metric names to values. Absent values are omitted, never zero-filled.
type Metrics map[string]float64

// Get returns the value and whether it was present.
func (m Metrics) Get(key string) (float64, bool) {
	v, ok := m[key]
	return v, ok
}

// ExtractPrimaryMetrics pulls the headline numbers from the first face.
func ExtractPrimaryMetrics(faces []detection.FaceResult) Metrics {
	metrics := Metrics{}
	if len(faces) == 0 {
		return metrics
	}

	vs := faces[0].VitalSigns
	if hr := vs.HeartRate; hr != nil {
		putOptional(metrics, MetricHeartRate, hr.Value)
		putOptional(metrics, MetricHeartRateConfidence, hr.Confidence)
	}
	if rr := vs.RespiratoryRate; rr != nil {
		putOptional(metrics, MetricRespiratoryRate, rr.Value)
		putOptional(metrics, MetricRespiratoryRateConfidence, rr.Confidence)
	}
	return metrics
}

// FaceNote returns the first face's confidence note, or "".
func FaceNote(faces []detection.FaceResult) string {
	if len(faces) == 0 {
		return ""
	}
	return faces[0].Face.Note
}

func putOptional(m Metrics, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

// BuildSummary renders a one-line summary such as "POS (免費) • HR 72 bpm • RR 15 rpm".
// Missing or zero rates are left out.
func BuildSummary(metrics Metrics, method string) string {
	parts := []string{method}
	if hr, ok := metrics.Get(MetricHeartRate); ok && hr != 0 {
		parts = append(parts, "HR "+FormatNumber(hr)+" bpm")
	}
	if rr, ok := metrics.Get(MetricRespiratoryRate); ok && rr != 0 {
		parts = append(parts, "RR "+FormatNumber(rr)+" rpm")
	}
	return strings.Join(parts, " • ")
}
