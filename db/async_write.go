package db

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultChannelCapacity is the default buffer size for queued writes.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout bounds how long StopWithTimeout waits for the queue.
const DefaultDrainTimeout = 10 * time.Second

// WriteOperation is one queued write.
type WriteOperation struct {
	Data      any
	Timestamp time.Time
}

// WriteHandler processes one queued write. It owns its error reporting.
type WriteHandler func(op WriteOperation) error

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	ChannelCapacity int
	DrainTimeout    time.Duration
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// AsyncWriter moves history inserts off the request path: Write enqueues
// without blocking and a single goroutine applies the handler in order.
// Pending operations are drained on Stop.
type AsyncWriter struct {
	writeChan chan WriteOperation
	handler   WriteHandler
	config    AsyncWriterConfig
	logger    *zap.Logger

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewAsyncWriter creates a writer with the default configuration.
func NewAsyncWriter(handler WriteHandler, logger *zap.Logger) *AsyncWriter {
	return NewAsyncWriterWithConfig(handler, DefaultAsyncWriterConfig(), logger)
}

// NewAsyncWriterWithConfig creates a writer with custom configuration.
func NewAsyncWriterWithConfig(handler WriteHandler, config AsyncWriterConfig, logger *zap.Logger) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter{
		writeChan: make(chan WriteOperation, config.ChannelCapacity),
		handler:   handler,
		config:    config,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Extra calls are no-ops.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.stopped {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drainChannel()
			return
		case op := <-w.writeChan:
			w.apply(op)
		}
	}
}

func (w *AsyncWriter) drainChannel() {
	for {
		select {
		case op := <-w.writeChan:
			w.apply(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter) apply(op WriteOperation) {
	if err := w.handler(op); err != nil {
		w.logger.Debug("async write failed", zap.Error(err))
	}
}

// Write queues data. It returns false when the queue is full or the
// writer has been stopped.
func (w *AsyncWriter) Write(data any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return false
	}
	select {
	case w.writeChan <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued operations.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Stop rejects further writes, drains the queue and waits for the
// goroutine, bounded by the configured drain timeout. It reports whether
// the drain finished in time.
func (w *AsyncWriter) Stop() bool {
	return w.StopWithTimeout(w.config.DrainTimeout)
}

// StopWithTimeout is Stop with an explicit bound.
func (w *AsyncWriter) StopWithTimeout(timeout time.Duration) bool {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		w.logger.Warn("async writer drain timed out",
			zap.Int("pending", w.Pending()),
			zap.Duration("timeout", timeout))
		return false
	}
}

// IsStarted reports whether the writer is accepting and processing writes.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.stopped
}
