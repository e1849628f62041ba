// Package report turns detector output into text, metrics and charts.
// Everything here is a pure function of its input.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"vitals_backend/detection"
)

// NoResultsText is returned by FormatResults for an empty result list.
const NoResultsText = "No detection results"

// NotAvailable is the fallback for missing values.
const NotAvailable = "N/A"

// FormatResults renders a human-readable summary of every face.
func FormatResults(faces []detection.FaceResult) string {
	if len(faces) == 0 {
		return NoResultsText
	}

	var b strings.Builder
	for i, face := range faces {
		fmt.Fprintf(&b, "=== Face %d ===\n", i+1)

		note := face.Face.Note
		if note == "" {
			note = "Unknown"
		}
		fmt.Fprintf(&b, "Face Confidence: %s\n\n", note)

		vs := face.VitalSigns
		if vs.HeartRate != nil {
			writeMeasurement(&b, "Heart Rate", "HR", vs.HeartRate, "bpm")
		}
		if vs.RespiratoryRate != nil {
			writeMeasurement(&b, "Respiratory Rate", "RR", vs.RespiratoryRate, "rpm")
		}
		if n := vs.PPGWaveform.Len(); n > 0 {
			fmt.Fprintf(&b, "PPG Waveform: %d data points\n\n", n)
		}
		if n := vs.RespiratoryWaveform.Len(); n > 0 {
			fmt.Fprintf(&b, "Respiratory Waveform: %d data points\n\n", n)
		}
		if s := vs.RollingHeartRate; s.Len() > 0 {
			fmt.Fprintf(&b, "Rolling Heart Rate: %d data points\nAverage HR: %.1f %s\n\n",
				s.Len(), s.Mean(), unitOr(s.Unit, "bpm"))
		}
		if s := vs.RollingRespiratoryRate; s.Len() > 0 {
			fmt.Fprintf(&b, "Rolling Respiratory Rate: %d data points\nAverage RR: %.1f %s\n\n",
				s.Len(), s.Mean(), unitOr(s.Unit, "rpm"))
		}
		if face.Message != "" {
			fmt.Fprintf(&b, "System Message: %s\n\n", face.Message)
		}
	}
	return b.String()
}

func writeMeasurement(b *strings.Builder, name, abbrev string, m *detection.Measurement, defaultUnit string) {
	fmt.Fprintf(b, "%s: %s %s\n", name, formatOptional(m.Value), unitOr(m.Unit, defaultUnit))
	fmt.Fprintf(b, "%s Confidence: %s\n", abbrev, formatOptional(m.Confidence))
	fmt.Fprintf(b, "Note: %s\n\n", m.Note)
}

func formatOptional(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return FormatNumber(*v)
}

// FormatNumber prints v with the shortest exact representation (72, 72.5).
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unitOr(unit, fallback string) string {
	if unit == "" {
		return fallback
	}
	return unit
}
