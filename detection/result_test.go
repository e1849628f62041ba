package detection

import (
	"encoding/json"
	"math"
	"testing"
)

func TestSeriesDataUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []float64
	}{
		{"number array", `[1, 2.5, 3]`, []float64{1, 2.5, 3}},
		{"numpy repr", `"[1.0 2.5 3.25]"`, []float64{1, 2.5, 3.25}},
		{"comma string", `"4,5,6"`, []float64{4, 5, 6}},
		{"null", `null`, nil},
		{"empty array", `[]`, []float64{}},
		{"numpy nan dropped", `"[nan 1 2]"`, []float64{1, 2}},
		{"numpy inf dropped", `"[0.1 nan inf -inf 0.3]"`, []float64{0.1, 0.3}},
		{"all nan", `"[nan nan]"`, []float64{}},
		{"garbage string", `"[1.0 nan? ...]"`, nil},
		{"object", `{"a": 1}`, nil},
		{"mixed array", `[1, "x"]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d SeriesData
			if err := json.Unmarshal([]byte(tt.raw), &d); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.raw, err)
			}
			if len(d) != len(tt.want) {
				t.Fatalf("Unmarshal(%s) = %v, want %v", tt.raw, d, tt.want)
			}
			for i := range d {
				if d[i] != tt.want[i] {
					t.Errorf("index %d = %v, want %v", i, d[i], tt.want[i])
				}
			}
		})
	}
}

func TestFaceResultDecode(t *testing.T) {
	raw := `[{
		"face": {"coordinates": [[1,2,3,4]], "confidence": [0.9], "note": "High confidence"},
		"vital_signs": {
			"heart_rate": {"value": 72.5, "unit": "bpm", "confidence": 0.93, "note": "ok"},
			"respiratory_rate": {"value": 15, "unit": "rpm"},
			"ppg_waveform": {"data": [0.1, 0.2, 0.3], "unit": "unitless"},
			"rolling_heart_rate": {"data": "[70 72 74]", "unit": "bpm"}
		},
		"message": "Estimates are not medical advice."
	}]`

	var faces []FaceResult
	if err := json.Unmarshal([]byte(raw), &faces); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(faces))
	}
	vs := faces[0].VitalSigns
	if vs.HeartRate == nil || vs.HeartRate.Value == nil || *vs.HeartRate.Value != 72.5 {
		t.Errorf("heart rate = %+v", vs.HeartRate)
	}
	if vs.RespiratoryRate.Confidence != nil {
		t.Errorf("respiratory confidence = %v, want nil", *vs.RespiratoryRate.Confidence)
	}
	if vs.PPGWaveform.Len() != 3 {
		t.Errorf("ppg len = %d, want 3", vs.PPGWaveform.Len())
	}
	if got := vs.RollingHeartRate.Mean(); got != 72 {
		t.Errorf("rolling HR mean = %v, want 72", got)
	}
	if vs.RespiratoryWaveform.Len() != 0 {
		t.Errorf("missing series Len() = %d, want 0", vs.RespiratoryWaveform.Len())
	}
	if faces[0].Face.Note != "High confidence" {
		t.Errorf("face note = %q", faces[0].Face.Note)
	}
}

func TestSeriesMean_SkipsNonFinite(t *testing.T) {
	tests := []struct {
		name string
		data SeriesData
		want float64
	}{
		{"finite", SeriesData{1, 2, 3}, 2},
		{"nan gap", SeriesData{70, math.NaN(), 74}, 72},
		{"only inf", SeriesData{math.Inf(1), math.Inf(-1)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Series{Data: tt.data}
			if got := s.Mean(); got != tt.want {
				t.Errorf("Mean() = %v, want %v", got, tt.want)
			}
		})
	}
	var nilSeries *Series
	if got := nilSeries.Mean(); got != 0 {
		t.Errorf("nil Mean() = %v", got)
	}
}
