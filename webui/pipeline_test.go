package webui

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vitals_backend/analysis"
	"vitals_backend/core"
	"vitals_backend/detection"
	"vitals_backend/results"
)

type fixedProber time.Duration

func (p fixedProber) Duration(context.Context, string) (time.Duration, error) {
	return time.Duration(p), nil
}

// newPipelineServer serves uploads through a real analysis.Processor.
func newPipelineServer(t *testing.T, videoLength time.Duration, faces func() []detection.FaceResult) (*testServer, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	detector := detection.DetectorFunc(func(context.Context, detection.Request) ([]detection.FaceResult, error) {
		calls.Add(1)
		return faces(), nil
	})
	layout := core.NewDataLayout(filepath.Join(t.TempDir(), "data"))
	proc := analysis.NewProcessor(analysis.Options{
		Detector:         detector,
		Prober:           fixedProber(videoLength),
		Store:            results.NewStore(layout, nil),
		MaxVideoDuration: 45 * time.Second,
	})
	ts := newTestServer(t, func(_ *ServerConfig, d *Deps) { d.Processor = proc })
	return ts, &calls
}

func TestProcessVideo_DurationCeilingIgnoresSourceField(t *testing.T) {
	for _, source := range []string{"upload", "webcam"} {
		t.Run(source, func(t *testing.T) {
			ts, calls := newPipelineServer(t, 10*time.Minute, func() []detection.FaceResult { return nil })
			rr := ts.do(uploadRequest(t, uploadParts{
				fields: map[string][]string{"methods": {"POS (免費)"}, "source": {source}},
				video:  []byte("x"),
			}))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rr.Code, rr.Body.String())
			}
			if !strings.Contains(decodeDetail(t, rr), "影片長度不得超過 45 秒") {
				t.Errorf("detail = %q", decodeDetail(t, rr))
			}
			if n := calls.Load(); n != 0 {
				t.Errorf("detector called %d times", n)
			}
		})
	}
}

func TestProcessVideo_NaNWaveformStillReturnsResult(t *testing.T) {
	ts, calls := newPipelineServer(t, 20*time.Second, func() []detection.FaceResult {
		var faces []detection.FaceResult
		raw := `[{"face": {"note": "ok"}, "vital_signs": {
			"heart_rate": {"value": 71, "unit": "bpm"},
			"ppg_waveform": {"data": "[0.1 nan 0.3]"},
			"rolling_heart_rate": {"data": "[70 nan 72]"}}}]`
		if err := json.Unmarshal([]byte(raw), &faces); err != nil {
			t.Error(err)
		}
		return faces
	})
	rr := ts.do(uploadRequest(t, uploadParts{
		fields: map[string][]string{"methods": {"POS (免費)"}},
		video:  []byte("x"),
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var batch analysis.BatchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &batch); err != nil {
		t.Fatalf("body is not a batch result: %v (%q)", err, rr.Body.String())
	}
	if calls.Load() != 1 || len(batch.Results) != 1 {
		t.Fatalf("calls = %d, results = %d", calls.Load(), len(batch.Results))
	}
	entry := batch.Results[0]
	if entry.Status != analysis.StatusComplete || entry.PlotImage == "" || entry.AnalysisPath == "" {
		t.Errorf("entry = status %q, plot %d bytes, path %q", entry.Status, len(entry.PlotImage), entry.AnalysisPath)
	}
	if strings.Contains(entry.ResultText, "NaN") {
		t.Errorf("result text shows NaN: %q", entry.ResultText)
	}
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusOK, map[string]float64{"hr": math.NaN()})

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Detail == "" {
		t.Errorf("body = %q, err = %v", rr.Body.String(), err)
	}
}
