package shutdown

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestShutdownRegistry_RunsInPriorityOrder(t *testing.T) {
	registry := NewShutdownRegistry()
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	registry.Register("logs", PriorityLogs, record("logs"))
	registry.Register("database", PriorityStorage, record("database"))
	registry.Register("http", PriorityHTTP, record("http"))
	registry.Register("recorder", PriorityRecorder, record("recorder"))
	registry.Register("history-writer", PriorityWriters, record("history-writer"))
	registry.Register("websocket", PriorityHTTP, record("websocket"))

	want := []string{"http", "websocket", "recorder", "history-writer", "database", "logs"}
	if got := registry.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if errs := registry.Shutdown(context.Background()); len(errs) != 0 {
		t.Errorf("Shutdown() errors = %v", errs)
	}
	if !slices.Equal(order, want) {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestShutdownRegistry_CollectsErrorsAndContinues(t *testing.T) {
	registry := NewShutdownRegistry()
	errDB := errors.New("database is locked")
	ran := 0

	registry.Register("database", PriorityStorage, func(context.Context) error {
		ran++
		return errDB
	})
	registry.Register("upload-temp", PriorityFiles, func(context.Context) error {
		ran++
		return nil
	})

	errs := registry.Shutdown(context.Background())
	if ran != 2 {
		t.Errorf("ran %d handlers, want 2", ran)
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one", errs)
	}
	if !errors.Is(errs[0], errDB) || !strings.HasPrefix(errs[0].Error(), "database: ") {
		t.Errorf("error = %q, want wrapped and prefixed with the handler name", errs[0])
	}
}

func TestShutdownRegistry_OnlyOnce(t *testing.T) {
	registry := NewShutdownRegistry()
	calls := 0
	registry.Register("counter", PriorityHTTP, func(context.Context) error {
		calls++
		return nil
	})

	registry.Shutdown(context.Background())
	if errs := registry.Shutdown(context.Background()); errs != nil {
		t.Errorf("second Shutdown() = %v, want nil", errs)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}

	registry.Register("late", PriorityHTTP, func(context.Context) error {
		t.Error("late handler should never run")
		return nil
	})
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, late registration should be ignored", registry.Count())
	}
}

func TestShutdownRegistry_PassesDeadline(t *testing.T) {
	registry := NewShutdownRegistry()
	registry.Register("recorder", PriorityRecorder, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	errs := registry.Shutdown(ctx)
	if len(errs) != 1 || !errors.Is(errs[0], context.DeadlineExceeded) {
		t.Errorf("errors = %v, want DeadlineExceeded", errs)
	}
}
