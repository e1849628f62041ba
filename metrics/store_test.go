package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vitals_backend/detection"
)

func TestNewStore(t *testing.T) {
	t.Run("zero capacity uses the default", func(t *testing.T) {
		s := NewStore(StoreConfig{}, time.Now())
		if len(s.recent) != DefaultRecentCapacity {
			t.Errorf("capacity = %d, want %d", len(s.recent), DefaultRecentCapacity)
		}
	})

	t.Run("empty snapshot", func(t *testing.T) {
		start := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
		s := NewStore(StoreConfig{RecentCapacity: 5, Version: "1.2.3"}, start)
		s.now = func() time.Time { return start.Add(90 * time.Second) }

		snap := s.Snapshot()
		if snap.Version != "1.2.3" || snap.Uptime != 90*time.Second {
			t.Errorf("snapshot header = %q, %v", snap.Version, snap.Uptime)
		}
		if snap.TotalRuns != 0 || len(snap.ByMethod) != 0 || len(snap.Recent) != 0 {
			t.Errorf("empty store snapshot = %+v", snap)
		}
	})
}

func TestStore_Record(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), time.Now())
	s.Record(RunRecord{Method: detection.MethodPOS, Outcome: OutcomeSuccess, Faces: 1, Duration: 2 * time.Second})
	s.Record(RunRecord{Method: detection.MethodPOS, Outcome: OutcomeNoFace, Duration: 4 * time.Second})
	s.Record(RunRecord{Method: detection.MethodVitalLens, Outcome: OutcomeError, ErrorKind: detection.KindCredential, Duration: time.Second})
	s.Record(RunRecord{Method: detection.MethodVitalLens, Outcome: OutcomeError})

	snap := s.Snapshot()
	if snap.TotalRuns != 4 || snap.TotalSuccess != 1 || snap.TotalNoFace != 1 || snap.TotalErrors != 2 {
		t.Errorf("totals = %d/%d/%d/%d", snap.TotalRuns, snap.TotalSuccess, snap.TotalNoFace, snap.TotalErrors)
	}

	pos := snap.ByMethod[detection.MethodPOS]
	if pos == nil || pos.Count != 2 || pos.SuccessRate != 50 {
		t.Fatalf("POS stats = %+v", pos)
	}
	if pos.AvgDuration != 3*time.Second || pos.MaxDuration != 4*time.Second {
		t.Errorf("POS durations avg=%v max=%v", pos.AvgDuration, pos.MaxDuration)
	}
	if pos.Errors != nil {
		t.Errorf("POS errors = %v, want none", pos.Errors)
	}

	vl := snap.ByMethod[detection.MethodVitalLens]
	if vl.SuccessRate != 0 {
		t.Errorf("VITALLENS success rate = %v", vl.SuccessRate)
	}
	if vl.Errors[detection.KindCredential] != 1 || vl.Errors[detection.KindUnknown] != 1 {
		t.Errorf("VITALLENS errors = %v", vl.Errors)
	}

	// The snapshot is a copy.
	vl.Errors[detection.KindCredential] = 99
	if s.Snapshot().ByMethod[detection.MethodVitalLens].Errors[detection.KindCredential] != 1 {
		t.Error("snapshot shares the error map with the store")
	}
}

func TestStore_RecentWrapsAround(t *testing.T) {
	s := NewStore(StoreConfig{RecentCapacity: 3}, time.Now())
	for i := 1; i <= 5; i++ {
		s.Record(RunRecord{Method: detection.MethodG, Faces: i, Outcome: OutcomeSuccess})
	}

	got := s.Recent(10)
	if len(got) != 3 {
		t.Fatalf("Recent(10) len = %d, want 3", len(got))
	}
	for i, want := range []int{5, 4, 3} {
		if got[i].Faces != want {
			t.Errorf("Recent[%d].Faces = %d, want %d", i, got[i].Faces, want)
		}
	}
	if got := s.Recent(1); len(got) != 1 || got[0].Faces != 5 {
		t.Errorf("Recent(1) = %+v", got)
	}
	if got := s.Recent(0); len(got) != 0 {
		t.Errorf("Recent(0) = %+v", got)
	}
	if s.Snapshot().TotalRuns != 5 {
		t.Error("ring wrap must not lose totals")
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(StoreConfig{RecentCapacity: 10}, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Record(RunRecord{Method: detection.MethodCHROM, Outcome: OutcomeSuccess})
		}()
		go func() {
			defer wg.Done()
			s.Snapshot()
		}()
	}
	wg.Wait()
	if got := s.Snapshot().TotalRuns; got != 50 {
		t.Errorf("TotalRuns = %d, want 50", got)
	}
}

func TestInstrumentDetector(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), time.Now())
	clock := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	errUnavailable := &detection.Error{Kind: detection.KindUnavailable, Message: "service down"}
	tests := []struct {
		name    string
		faces   []detection.FaceResult
		err     error
		outcome Outcome
		kind    detection.ErrorKind
	}{
		{"faces", []detection.FaceResult{{}}, nil, OutcomeSuccess, ""},
		{"no face", nil, nil, OutcomeNoFace, ""},
		{"typed error", nil, errUnavailable, OutcomeError, detection.KindUnavailable},
		{"plain error", nil, errors.New("exit status 1"), OutcomeError, detection.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := detection.DetectorFunc(func(ctx context.Context, req detection.Request) ([]detection.FaceResult, error) {
				return tt.faces, tt.err
			})
			faces, err := InstrumentDetector(inner, s).Detect(context.Background(),
				detection.Request{VideoPath: "face.mp4", Method: detection.MethodPOS})
			if len(faces) != len(tt.faces) || !errors.Is(err, tt.err) {
				t.Fatalf("result not passed through: %v, %v", faces, err)
			}

			rec := s.Recent(1)[0]
			if rec.Outcome != tt.outcome || rec.ErrorKind != tt.kind {
				t.Errorf("record = %+v, want outcome %s kind %q", rec, tt.outcome, tt.kind)
			}
			if rec.Method != detection.MethodPOS || rec.Duration != time.Second {
				t.Errorf("record method/duration = %s/%v", rec.Method, rec.Duration)
			}
		})
	}
}
