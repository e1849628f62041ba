package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vitals_backend/core"
)

// Manager owns the process lifetime context. The first SIGINT/SIGTERM
// cancels it; a second one calls the force-exit hook.
//
//	m := shutdown.NewManager(logger)
//	m.Register("http", shutdown.PriorityHTTP, srv.Shutdown)
//	m.Start()
//	<-m.Context().Done()
//	m.Shutdown()
type Manager struct {
	logger    *zap.Logger
	timeout   time.Duration
	forceExit func()

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *ShutdownRegistry
	signals  atomic.Int32
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds the whole shutdown sequence (default 30s).
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithForceExit replaces the second-signal hook (default os.Exit with
// core.ExitCodeSIGINT).
func WithForceExit(fn func()) ManagerOption {
	return func(m *Manager) {
		m.forceExit = fn
	}
}

// NewManager returns a Manager whose context is live until a signal
// arrives or Cancel is called.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewShutdownRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	m.forceExit = func() { os.Exit(core.ExitCodeSIGINT) }
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Cancel starts shutdown without a signal, e.g. when the server fails.
func (m *Manager) Cancel() {
	m.cancel()
}

// Register adds a cleanup handler; see the Priority constants.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	switch m.signals.Add(1) {
	case 1:
		m.logger.Info("received shutdown signal, shutting down gracefully",
			zap.String("signal", sig.String()))
		m.cancel()
	case 2:
		m.logger.Warn("received second signal, forcing exit")
		m.forceExit()
	}
}

// Shutdown refuses new operations, waits for running ones and then runs
// the cleanup handlers with whatever time is left. It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	m.mu.Unlock()
	m.cancel()

	start := time.Now()
	m.logger.Info("shutting down",
		zap.Duration("timeout", m.timeout),
		zap.Int64("active_operations", m.tracker.ActiveCount()),
		zap.Strings("handlers", m.registry.Names()))

	m.tracker.Close()
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.logger.Warn("operations still running at shutdown",
			zap.Int64("remaining", m.tracker.ActiveCount()))
	}

	remaining := max(m.timeout-time.Since(start), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.logger.Error("cleanup failed", zap.Error(err))
	}

	m.mu.Lock()
	if m.started {
		signal.Stop(m.sigChan)
	}
	m.mu.Unlock()

	m.logger.Info("shutdown complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}

// WrapOperation runs fn as a tracked operation. After shutdown began it
// returns ErrTrackerClosed without calling fn.
func (m *Manager) WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.tracker.Start() {
		m.logger.Debug("operation rejected during shutdown", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// ActiveOperations returns the number of tracked operations still running.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.ActiveCount()
}

// IsShuttingDown reports whether Shutdown has been called.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// RegisteredHandlers lists handler names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
