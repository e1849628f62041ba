// Package recorder owns the webcam recording session: a mutex-guarded
// state holder and the single background worker that captures, encodes
// and analyzes one recording at a time.
package recorder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitals_backend/analysis"
	"vitals_backend/core"
	"vitals_backend/detection"
	"vitals_backend/media"
	"vitals_backend/status"
)

// Defaults applied by NewSession.
const (
	DefaultProbeCount   = 5
	DefaultFPS          = 30
	DefaultProbeTimeout = 5 * time.Second
	DefaultStopGrace    = 2 * time.Second
)

// Analyzer runs detection on a finished recording.
type Analyzer interface {
	ProcessVideo(ctx context.Context, req analysis.Request) (*analysis.BatchResult, error)
}

// Config wires a Session. Camera, Encoder and Analyzer are required.
type Config struct {
	Camera        media.Camera
	Encoder       media.Encoder
	Analyzer      Analyzer
	Publisher     status.Publisher
	Layout        core.DataLayout
	DefaultAPIKey string
	ProbeCount    int
	FPS           int
	JPEGQuality   int
	ProbeTimeout  time.Duration
	StopGrace     time.Duration
	Logger        *zap.Logger
}

// Session is the process-wide recording state. Every field below mu is
// read and written only while holding mu.
type Session struct {
	cfg    Config
	logger *zap.Logger

	// serviceCtx outlives individual recordings; encode and analyze run on it.
	serviceCtx    context.Context
	serviceCancel context.CancelFunc

	// startMu serializes Start so camera probing happens outside mu.
	startMu sync.Mutex

	mu            sync.Mutex
	closed        bool
	recording     bool
	outputPath    string
	lastResult    *Result
	statusMessage string
	phase         Phase
	sessionID     string
	cancel        context.CancelFunc
	done          chan struct{}

	// Test hooks.
	now        func() time.Time
	secondUnit time.Duration
}

// NewSession creates the idle session.
func NewSession(cfg Config) *Session {
	if cfg.Publisher == nil {
		cfg.Publisher = status.Nop{}
	}
	if cfg.ProbeCount <= 0 {
		cfg.ProbeCount = DefaultProbeCount
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.DefaultAPIKey = strings.TrimSpace(cfg.DefaultAPIKey)

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:           cfg,
		logger:        cfg.Logger,
		serviceCtx:    ctx,
		serviceCancel: cancel,
		phase:         PhaseIdle,
		now:           time.Now,
		secondUnit:    time.Second,
	}
}

// Start validates req, finds a camera and launches the worker. It returns
// as soon as the worker is running. While a recording is active it
// returns the recording state together with ErrAlreadyRecording.
func (s *Session) Start(ctx context.Context, req StartRequest) (Response, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.isClosed() {
		return Response{}, ErrSessionClosed
	}
	if resp, busy := s.busyResponse(); busy {
		return resp, ErrAlreadyRecording
	}

	duration := req.Duration
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration < MinDuration || duration > MaxDuration {
		return Response{}, ErrInvalidDuration
	}

	method, err := detection.ParseMethod(req.Method)
	if err != nil {
		return Response{}, &analysis.ValidationError{Message: err.Error()}
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = s.cfg.DefaultAPIKey
	}
	if method.RequiresCredential() && apiKey == "" {
		return Response{}, &analysis.ValidationError{Message: "使用 VITALLENS 方法需要提供 API Key"}
	}

	// Probing can take seconds per index; pollers must not wait on it.
	index, err := s.locateCamera(ctx)
	if err != nil {
		s.logger.Warn("no camera available", zap.Error(err))
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Close may have run while the camera was being probed.
	if s.closed {
		return Response{}, ErrSessionClosed
	}
	if s.recording {
		return Response{State: StateRecording, Message: ErrAlreadyRecording.Error(), SessionID: s.sessionID}, ErrAlreadyRecording
	}

	captureCtx, cancel := context.WithCancel(s.serviceCtx)
	job := job{
		id:         uuid.NewString(),
		cancel:     cancel,
		cameraHint: index,
		method:     strings.TrimSpace(req.Method),
		apiKey:     apiKey,
		duration:   time.Duration(duration) * s.secondUnit,
		seconds:    duration,
		outputPath: filepath.Join(s.cfg.Layout.VideosDir(),
			fmt.Sprintf("vitallens_webcam_%s.mp4", core.FileTimestamp(s.now()))),
	}

	s.recording = true
	s.outputPath = job.outputPath
	s.lastResult = nil
	s.statusMessage = fmt.Sprintf("開始錄影 %d 秒...", duration)
	s.phase = PhaseSearchingCamera
	s.sessionID = job.id
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("recording started",
		zap.String("session_id", job.id),
		zap.String("method", job.method),
		zap.Int("camera", index),
		zap.Int("duration_s", duration),
		zap.String("output", job.outputPath))

	go s.run(captureCtx, job, s.done)

	return Response{State: StateRecording, Message: s.statusMessage, SessionID: job.id}, nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) busyResponse() (Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return Response{}, false
	}
	return Response{State: StateRecording, Message: ErrAlreadyRecording.Error(), SessionID: s.sessionID}, true
}

// Stop asks the worker to end capture and waits up to the stop grace
// period for it to exit. It reports "stopping" whether or not the worker
// finished in time.
func (s *Session) Stop(ctx context.Context) Response {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return Response{State: StateIdle, Message: "目前沒有在錄影"}
	}
	s.cancel()
	done := s.done
	id := s.sessionID
	s.mu.Unlock()

	timer := time.NewTimer(s.cfg.StopGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Debug("worker still running after stop grace", zap.String("session_id", id))
	case <-ctx.Done():
	}

	return Response{State: StateStopping, Message: "錄影已停止，正在處理...", SessionID: id}
}

// Poll reports the current state. A finished result is handed out exactly
// once; later polls see the idle state.
func (s *Session) Poll() Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		msg := "錄影中，請保持靜止..."
		if s.phase == PhaseEncoding || s.phase == PhaseAnalyzing {
			msg = "錄影完成，正在分析..."
		}
		return Response{State: StateRecording, Message: msg, SessionID: s.sessionID, Phase: string(s.phase)}
	}

	if r := s.lastResult; r != nil {
		s.lastResult = nil
		return Response{
			State:        StateCompleted,
			Message:      r.Message,
			SessionID:    s.sessionID,
			ResultStatus: r.Status,
			ResultText:   r.ResultText,
			PlotImage:    r.PlotImage,
			Metrics:      r.Metrics,
		}
	}

	return Response{State: StateIdle, Message: s.statusMessage}
}

// Recording reports whether a worker is active.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Close stops any capture and waits for the worker. If ctx expires first
// the in-flight encode or analysis is cancelled as well. Later Start calls
// fail with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	done := s.done
	if s.recording {
		s.cancel()
	}
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			s.serviceCancel()
			return fmt.Errorf("recorder shutdown: %w", ctx.Err())
		}
	}
	s.serviceCancel()
	return nil
}

// finish publishes the terminal result. lastResult, statusMessage and
// recording change in one critical section so a poller never sees the
// session idle without the result.
func (s *Session) finish(id string, result *Result, statusMessage string, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != id {
		return
	}
	s.lastResult = result
	s.statusMessage = statusMessage
	s.recording = false
	s.phase = phase
	s.cancel = nil
}

func (s *Session) setPhase(id string, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == id {
		s.phase = p
	}
}
