package detection

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FaceResult is one detected face as returned by the Detection Service.
type FaceResult struct {
	Face       FaceInfo   `json:"face"`
	VitalSigns VitalSigns `json:"vital_signs"`
	Message    string     `json:"message,omitempty"`
}

// FaceInfo describes the face region.
type FaceInfo struct {
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Confidence  json.RawMessage `json:"confidence,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// VitalSigns holds scalar estimates and their waveforms. Nil pointers mean
// the detector did not report that sign.
type VitalSigns struct {
	HeartRate              *Measurement `json:"heart_rate,omitempty"`
	RespiratoryRate        *Measurement `json:"respiratory_rate,omitempty"`
	PPGWaveform            *Series      `json:"ppg_waveform,omitempty"`
	RespiratoryWaveform    *Series      `json:"respiratory_waveform,omitempty"`
	RollingHeartRate       *Series      `json:"rolling_heart_rate,omitempty"`
	RollingRespiratoryRate *Series      `json:"rolling_respiratory_rate,omitempty"`
}

// Measurement is a single estimated value.
type Measurement struct {
	Value      *float64 `json:"value,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Note       string   `json:"note,omitempty"`
}

// Series is a waveform or rolling estimate.
type Series struct {
	Data       SeriesData      `json:"data"`
	Unit       string          `json:"unit,omitempty"`
	Confidence json.RawMessage `json:"confidence,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// Len returns the number of samples; safe on nil.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Data)
}

// Mean returns the arithmetic mean of the finite samples, or 0 when there
// are none.
func (s *Series) Mean() float64 {
	if s.Len() == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, v := range s.Data {
		if !finite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SeriesData decodes either a JSON number array or a string holding an
// array. The detector sometimes emits numpy reprs such as "[1.0 2.5 3.1]".
// Anything unparsable decodes to an empty series rather than an error.
// nan and inf samples in a repr are dropped, so decoded data always
// encodes back to JSON.
type SeriesData []float64

func (d *SeriesData) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*d = nil
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			*d = nil
			return nil
		}
		*d = parseSeriesString(s)
		return nil
	}

	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		*d = nil
		return nil
	}
	*d = values
	return nil
}

// parseSeriesString accepts "[1, 2, 3]", "[1 2 3]" or "1,2,3".
func parseSeriesString(s string) SeriesData {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}

	out := make(SeriesData, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}
