package webui

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := NewSessionStore(time.Hour)

	session, err := store.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID == "" {
		t.Fatal("Create() returned an empty id")
	}
	if got := session.ExpiresAt.Sub(session.CreatedAt); got != time.Hour {
		t.Errorf("lifetime = %v, want 1h", got)
	}

	got, err := store.Get(session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("Get() id = %q, want %q", got.ID, session.ID)
	}
}

func TestSessionStore_UniqueIDs(t *testing.T) {
	store := NewSessionStore(time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := store.Create()
		if err != nil {
			t.Fatal(err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate session id %q", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestSessionStore_GetErrors(t *testing.T) {
	store := NewSessionStore(time.Minute)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	session, _ := store.Create()

	if _, err := store.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrSessionNotFound", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := store.Get(session.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get(expired) error = %v, want ErrSessionExpired", err)
	}
	if store.Count() != 0 {
		t.Error("expired session should be removed on access")
	}
}

func TestSessionStore_DeleteAndCleanup(t *testing.T) {
	store := NewSessionStore(time.Minute)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	a, _ := store.Create()
	store.Create()
	store.Delete(a.ID)
	store.Delete("unknown")

	if store.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", store.Count())
	}

	store.now = func() time.Time { return base.Add(time.Hour) }
	if removed := store.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
}

func TestSessionStore_CleanupTickerStops(t *testing.T) {
	store := NewSessionStore(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	store.StartCleanupTicker(ctx, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
}

func TestNewSessionStore_DefaultTTL(t *testing.T) {
	if got := NewSessionStore(0).TTL(); got != DefaultLoginSessionTTL {
		t.Errorf("TTL() = %v, want %v", got, DefaultLoginSessionTTL)
	}
}
