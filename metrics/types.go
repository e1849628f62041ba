// Package metrics keeps in-memory statistics about detector runs for the
// status API. Nothing here is persisted; the history database is the
// durable record.
package metrics

import (
	"time"

	"vitals_backend/detection"
)

// Outcome classifies one detector run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomeNoFace is a clean run that found no usable face.
	OutcomeNoFace Outcome = "no_face"
	OutcomeError  Outcome = "error"
)

// RunRecord is one Detect call.
type RunRecord struct {
	Method    detection.Method    `json:"method"`
	Outcome   Outcome             `json:"outcome"`
	ErrorKind detection.ErrorKind `json:"error_kind,omitempty"`
	Faces     int                 `json:"faces"`
	StartTime time.Time           `json:"start_time"`
	Duration  time.Duration       `json:"duration"`
}

// MethodStats aggregates the runs of one method.
type MethodStats struct {
	Count int64 `json:"count"`

	// SuccessRate is the percentage of runs with at least one face (0-100).
	SuccessRate float64 `json:"success_rate"`

	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`

	// Errors counts failed runs by kind.
	Errors map[detection.ErrorKind]int64 `json:"errors,omitempty"`
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Version      string                            `json:"version"`
	Uptime       time.Duration                     `json:"uptime"`
	TotalRuns    int64                             `json:"total_runs"`
	TotalSuccess int64                             `json:"total_success"`
	TotalNoFace  int64                             `json:"total_no_face"`
	TotalErrors  int64                             `json:"total_errors"`
	ByMethod     map[detection.Method]*MethodStats `json:"by_method"`
	Recent       []RunRecord                       `json:"recent"`
}
