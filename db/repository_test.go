package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func TestRepository_InsertAndGet(t *testing.T) {
	database := openTestDatabase(t)
	repo := NewRepository(database, nil, nil)
	ctx := context.Background()

	entry := HistoryEntry{
		Source:        "upload",
		Method:        "POS (免費)",
		FileName:      "clip.mp4",
		Status:        "Complete",
		FacesDetected: 1,
		HeartRate:     floatPtr(72.5),
		Summary:       "POS (免費) • HR 72.5 bpm",
		ResultPath:    "data/results/upload/upload_analysis_pos_(免費)_20240101_000000.json",
	}

	id, err := repo.InsertAnalysis(ctx, entry)
	if err != nil {
		t.Fatalf("InsertAnalysis() error = %v", err)
	}
	if id == "" {
		t.Fatal("InsertAnalysis() returned empty id")
	}

	got, err := repo.GetAnalysis(ctx, id)
	if err != nil {
		t.Fatalf("GetAnalysis() error = %v", err)
	}
	if got.Method != entry.Method || got.FileName != entry.FileName || got.Summary != entry.Summary {
		t.Errorf("GetAnalysis() = %+v", got)
	}
	if got.HeartRate == nil || *got.HeartRate != 72.5 {
		t.Errorf("HeartRate = %v, want 72.5", got.HeartRate)
	}
	if got.RespiratoryRate != nil {
		t.Errorf("RespiratoryRate = %v, want nil", *got.RespiratoryRate)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestRepository_GetUnknown(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil, nil)
	_, err := repo.GetAnalysis(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAnalysis() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListRecentOrder(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil, nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		_, err := repo.InsertAnalysis(ctx, HistoryEntry{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Source:    "upload",
			Method:    "G (免費)",
			FileName:  name,
			Status:    "Complete",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 10, []string{"c.mp4", "b.mp4", "a.mp4"}},
		{"limited", 2, []string{"c.mp4", "b.mp4"}},
		{"default limit", 0, []string{"c.mp4", "b.mp4", "a.mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListRecent(ctx, tt.limit)
			if err != nil {
				t.Fatalf("ListRecent() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListRecent() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].FileName != tt.want[i] {
					t.Errorf("entry %d = %s, want %s", i, got[i].FileName, tt.want[i])
				}
			}
		})
	}
}

func TestRepository_DeleteOlderThan(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil, nil)
	ctx := context.Background()
	now := time.Now()

	old := HistoryEntry{CreatedAt: now.Add(-48 * time.Hour), Source: "webcam", Method: "POS", Status: "Failed"}
	fresh := HistoryEntry{CreatedAt: now, Source: "webcam", Method: "POS", Status: "Complete"}
	if _, err := repo.InsertAnalysis(ctx, old); err != nil {
		t.Fatal(err)
	}
	freshID, err := repo.InsertAnalysis(ctx, fresh)
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	count, _ := repo.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
	if _, err := repo.GetAnalysis(ctx, freshID); err != nil {
		t.Errorf("fresh entry missing: %v", err)
	}
}

func TestRepository_AsyncInsert(t *testing.T) {
	database := openTestDatabase(t)
	repo := NewRepository(database, nil, nil)
	writer := NewAsyncWriter(repo.CreateAsyncWriteHandler(), nil)
	repo = NewRepository(database, writer, nil)
	writer.Start()

	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := repo.InsertAnalysis(ctx, HistoryEntry{Source: "upload", Method: "CHROM", Status: "Complete"})
		if err != nil {
			t.Fatalf("InsertAnalysis() error = %v", err)
		}
		ids = append(ids, id)
	}

	if !writer.Stop() {
		t.Fatal("writer did not drain in time")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5", count)
	}
	for _, id := range ids {
		if _, err := repo.GetAnalysis(ctx, id); err != nil {
			t.Errorf("GetAnalysis(%s) error = %v", id, err)
		}
	}
}

func TestRepository_StoppedWriterFallsBackToSync(t *testing.T) {
	database := openTestDatabase(t)
	writer := NewAsyncWriter(func(WriteOperation) error { return nil }, nil)
	writer.Start()
	writer.Stop()

	repo := NewRepository(database, writer, nil)
	id, err := repo.InsertAnalysis(context.Background(), HistoryEntry{Source: "upload", Method: "G", Status: "Complete"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetAnalysis(context.Background(), id); err != nil {
		t.Errorf("sync fallback did not write: %v", err)
	}
}
