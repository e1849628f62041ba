package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vitals_backend/core"
	"vitals_backend/db"
	"vitals_backend/detection"
	"vitals_backend/results"
	"vitals_backend/status"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []status.Event
}

func (r *recordingPublisher) Publish(ev status.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) stages() []status.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]status.Stage, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Stage
	}
	return out
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []db.HistoryEntry
	err     error
}

func (f *fakeHistory) InsertAnalysis(_ context.Context, e db.HistoryEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, e)
	return "hist-" + e.Method, nil
}

type fakeProber struct {
	d   time.Duration
	err error
}

func (f fakeProber) Duration(context.Context, string) (time.Duration, error) {
	return f.d, f.err
}

func ptr(v float64) *float64 { return &v }

func oneFace(hr float64) []detection.FaceResult {
	return []detection.FaceResult{{
		Face: detection.FaceInfo{Note: "good"},
		VitalSigns: detection.VitalSigns{
			HeartRate:       &detection.Measurement{Value: ptr(hr), Unit: "bpm"},
			RespiratoryRate: &detection.Measurement{Value: ptr(15), Unit: "rpm"},
			PPGWaveform:     &detection.Series{Data: detection.SeriesData{1, 2, 3}},
		},
	}}
}

type harness struct {
	proc      *Processor
	detector  *countingDetector
	publisher *recordingPublisher
	history   *fakeHistory
	layout    core.DataLayout
	video     string
}

type countingDetector struct {
	mu    sync.Mutex
	calls []detection.Request
	fn    func(detection.Request) ([]detection.FaceResult, error)
}

func (c *countingDetector) Detect(_ context.Context, req detection.Request) ([]detection.FaceResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()
	return c.fn(req)
}

func newHarness(t *testing.T, fn func(detection.Request) ([]detection.FaceResult, error), prober fakeProber) *harness {
	t.Helper()
	dir := t.TempDir()
	layout := core.NewDataLayout(filepath.Join(dir, "data"))
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &harness{
		detector:  &countingDetector{fn: fn},
		publisher: &recordingPublisher{},
		history:   &fakeHistory{},
		layout:    layout,
		video:     video,
	}
	h.proc = NewProcessor(Options{
		Detector:         h.detector,
		Prober:           prober,
		Store:            results.NewStore(layout, nil),
		History:          h.history,
		Publisher:        h.publisher,
		Chart:            func([]detection.FaceResult) (string, error) { return "cGxvdA==", nil },
		MaxVideoDuration: 45 * time.Second,
	})
	return h
}

func TestProcessVideo_PartialFailure(t *testing.T) {
	h := newHarness(t, func(req detection.Request) ([]detection.FaceResult, error) {
		if req.Method == detection.MethodCHROM {
			return nil, &detection.Error{Kind: detection.KindNoFace, Message: "No face detected"}
		}
		return oneFace(72), nil
	}, fakeProber{d: 20 * time.Second})

	batch, err := h.proc.ProcessVideo(context.Background(), Request{
		VideoPath: h.video,
		FileName:  "clip.mp4",
		Methods:   []string{"POS (免費)", "CHROM (免費)", "G (免費)"},
		Source:    results.SourceUpload,
	})
	if err != nil {
		t.Fatalf("ProcessVideo() error = %v", err)
	}

	if batch.Status != StatusCompletedWithErrs {
		t.Errorf("Status = %q, want %q", batch.Status, StatusCompletedWithErrs)
	}
	if len(batch.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(batch.Results))
	}
	if len(batch.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(batch.Errors))
	}

	complete := 0
	for _, e := range batch.Results {
		switch e.Status {
		case StatusComplete:
			complete++
			if e.ResultText == "" || e.PlotImage == "" {
				t.Errorf("%s: successful entry missing text or chart", e.Method)
			}
			if e.AnalysisPath == "" {
				t.Errorf("%s: analysis record not saved", e.Method)
			}
			if hr, _ := e.Metrics.Get("heart_rate"); hr != 72 {
				t.Errorf("%s: heart_rate = %v", e.Method, hr)
			}
		case StatusFailed:
			if e.Method != "CHROM (免費)" || e.ErrorKind != detection.KindNoFace {
				t.Errorf("unexpected failed entry %+v", e)
			}
			if !strings.HasPrefix(e.Summary, "No face detected") {
				t.Errorf("failed summary = %q", e.Summary)
			}
		}
	}
	if complete != 2 {
		t.Errorf("complete entries = %d, want 2", complete)
	}
	if got := batch.Results[1].DisplayName; got != "clip.mp4（CHROM (免費)）" {
		t.Errorf("DisplayName = %q", got)
	}
	if len(h.history.entries) != 3 {
		t.Errorf("history rows = %d, want 3", len(h.history.entries))
	}

	wantStages := []status.Stage{
		status.StageStart, status.StageComplete,
		status.StageStart, status.StageError,
		status.StageStart, status.StageComplete,
	}
	got := h.publisher.stages()
	if len(got) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", got, wantStages)
	}
	for i := range got {
		if got[i] != wantStages[i] {
			t.Errorf("stage %d = %s, want %s", i, got[i], wantStages[i])
		}
	}
	if msg := h.publisher.events[0].Message; msg != "[1/3] 使用 POS (免費) 分析 clip.mp4" {
		t.Errorf("start message = %q", msg)
	}
}

func TestProcessVideo_EmptyResultIsFailedEntry(t *testing.T) {
	h := newHarness(t, func(detection.Request) ([]detection.FaceResult, error) {
		return nil, nil
	}, fakeProber{err: errNoDuration})

	batch, err := h.proc.ProcessVideo(context.Background(), Request{VideoPath: h.video, Methods: []string{"POS"}})
	if err != nil {
		t.Fatalf("ProcessVideo() error = %v", err)
	}
	e := batch.Results[0]
	if e.Status != StatusFailed || e.Summary != NoFaceSummary {
		t.Errorf("entry = %+v", e)
	}
	if e.AnalysisPath == "" {
		t.Error("empty result should still be persisted")
	}
	if batch.Status != StatusComplete {
		t.Errorf("batch status = %q, want %q (empty result is not an error)", batch.Status, StatusComplete)
	}
}

var errNoDuration = errors.New("no duration")

func TestProcessVideo_Validation(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		apiKey  string
		prober  fakeProber
		path    string
		wantMsg string
	}{
		{"no methods", nil, "", fakeProber{}, "", "至少需要選擇一種檢測方法"},
		{"blank methods", []string{" ", ""}, "", fakeProber{}, "", "至少需要選擇一種檢測方法"},
		{"unknown method", []string{"POS", "FOO"}, "", fakeProber{}, "", "未知的檢測方法: FOO"},
		{"missing credential", []string{"POS", "VITALLENS"}, "", fakeProber{}, "", "使用 VITALLENS 方法需要提供 API Key"},
		{"too long", []string{"POS"}, "", fakeProber{d: 50500 * time.Millisecond}, "", "影片長度不得超過 45 秒 (目前約 50 秒)"},
		{"missing file", []string{"POS"}, "", fakeProber{}, "/does/not/exist.mp4", "找不到影片檔案: /does/not/exist.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(detection.Request) ([]detection.FaceResult, error) {
				return oneFace(70), nil
			}, tt.prober)
			path := h.video
			if tt.path != "" {
				path = tt.path
			}

			_, err := h.proc.ProcessVideo(context.Background(), Request{VideoPath: path, Methods: tt.methods, APIKey: tt.apiKey})
			if !IsValidation(err) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
			if len(h.detector.calls) != 0 {
				t.Errorf("detector called %d times before validation passed", len(h.detector.calls))
			}
		})
	}
}

func TestProcessVideo_SkipDurationCheck(t *testing.T) {
	h := newHarness(t, func(detection.Request) ([]detection.FaceResult, error) {
		return oneFace(70), nil
	}, fakeProber{d: 55 * time.Second})

	// Source alone does not lift the ceiling.
	_, err := h.proc.ProcessVideo(context.Background(), Request{
		VideoPath: h.video,
		Methods:   []string{"G"},
		Source:    results.SourceWebcam,
	})
	if !IsValidation(err) || len(h.detector.calls) != 0 {
		t.Fatalf("webcam source without skip: err = %v, detector calls = %d", err, len(h.detector.calls))
	}

	batch, err := h.proc.ProcessVideo(context.Background(), Request{
		VideoPath:         h.video,
		Methods:           []string{"G"},
		Source:            results.SourceWebcam,
		SkipDurationCheck: true,
	})
	if err != nil {
		t.Fatalf("ProcessVideo() error = %v", err)
	}
	if batch.Results[0].AnalysisPath == "" || !strings.HasPrefix(batch.Results[0].AnalysisPath, h.layout.WebcamResultsDir()) {
		t.Errorf("webcam record path = %q", batch.Results[0].AnalysisPath)
	}
	for _, ev := range h.publisher.events {
		if ev.Channel != status.ChannelWebcam {
			t.Errorf("event channel = %s, want webcam", ev.Channel)
		}
	}
}

func TestProcessVideo_CredentialHandling(t *testing.T) {
	tests := []struct {
		name       string
		requestKey string
		defaultKey string
		wantKey    string
	}{
		{"request key wins", "  req-key ", "env-key", "req-key"},
		{"falls back to default", "   ", "env-key", "env-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(detection.Request) ([]detection.FaceResult, error) {
				return oneFace(70), nil
			}, fakeProber{})
			h.proc.defaultAPIKey = tt.defaultKey

			_, err := h.proc.ProcessVideo(context.Background(), Request{
				VideoPath: h.video,
				Methods:   []string{"VITALLENS (需要 API Key)", "POS"},
				APIKey:    tt.requestKey,
			})
			if err != nil {
				t.Fatal(err)
			}
			calls := h.detector.calls
			if len(calls) != 2 {
				t.Fatalf("calls = %d", len(calls))
			}
			if calls[0].APIKey != tt.wantKey {
				t.Errorf("VITALLENS key = %q, want %q", calls[0].APIKey, tt.wantKey)
			}
			if calls[1].APIKey != "" {
				t.Errorf("free method received a key: %q", calls[1].APIKey)
			}
		})
	}
}

func TestProcessVideo_HistoryFailureDoesNotFailBatch(t *testing.T) {
	h := newHarness(t, func(detection.Request) ([]detection.FaceResult, error) {
		return oneFace(70), nil
	}, fakeProber{})
	h.history.err = errors.New("disk full")

	batch, err := h.proc.ProcessVideo(context.Background(), Request{VideoPath: h.video, Methods: []string{"POS"}})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Results[0].HistoryID != "" || batch.Status != StatusComplete {
		t.Errorf("batch = %+v", batch)
	}
}

func TestProcessVideo_LegacyErrorClassified(t *testing.T) {
	h := newHarness(t, func(detection.Request) ([]detection.FaceResult, error) {
		return nil, errors.New("The truth value of an array with more than one element is ambiguous")
	}, fakeProber{})

	batch, err := h.proc.ProcessVideo(context.Background(), Request{VideoPath: h.video, Methods: []string{"POS"}})
	if err != nil {
		t.Fatal(err)
	}
	e := batch.Results[0]
	if e.ErrorKind != detection.KindShortOrUnclearVideo {
		t.Errorf("ErrorKind = %q", e.ErrorKind)
	}
	if !strings.HasPrefix(batch.Errors[0], "Video processing encountered data issues") {
		t.Errorf("error message = %q", batch.Errors[0])
	}
}

func TestNormalizeMethods(t *testing.T) {
	got := NormalizeMethods([]string{"POS", " ", "G", "POS", " G "})
	want := []string{"POS", "G"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeMethods() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
