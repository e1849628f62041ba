package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vitals_backend/analysis"
	"vitals_backend/media"
	"vitals_backend/results"
	"vitals_backend/status"
)

// Phase is the worker's position in its state machine:
//
//	Idle -> SearchingCamera -> Capturing -> Encoding -> Analyzing -> Done | Failed
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseSearchingCamera Phase = "searching_camera"
	PhaseCapturing       Phase = "capturing"
	PhaseEncoding        Phase = "encoding"
	PhaseAnalyzing       Phase = "analyzing"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
)

type job struct {
	id         string
	cancel     context.CancelFunc
	cameraHint int // -1 searches every index
	method     string
	apiKey     string
	duration   time.Duration
	seconds    int
	outputPath string
}

// run is the worker goroutine. captureCtx is cancelled by Stop and only
// ends the capture loop; encode and analyze use the session's service
// context.
func (s *Session) run(captureCtx context.Context, j job, done chan struct{}) {
	defer close(done)
	defer j.cancel()

	logger := s.logger.With(zap.String("session_id", j.id))
	s.cfg.Publisher.Publish(status.Event{
		Channel: status.ChannelWebcam,
		Stage:   status.StageStart,
		Message: fmt.Sprintf("啟動攝影機錄影，目標 %d 秒", j.seconds),
	})

	result, err := s.record(captureCtx, j, logger)
	if err != nil {
		logger.Error("recording failed", zap.Error(err))
		s.cfg.Publisher.Publish(status.Event{
			Channel: status.ChannelWebcam,
			Stage:   status.StageError,
			Message: fmt.Sprintf("攝影機處理錯誤: %v", err),
		})
		msg := fmt.Sprintf("處理錯誤: %v", err)
		st := ResultError
		if isResourceFailure(err) {
			st = ResultFailed
		}
		s.finish(j.id, &Result{Status: st, Message: msg, VideoPath: j.outputPath}, msg, PhaseFailed)
		return
	}

	phase := PhaseDone
	if result.Status == ResultComplete {
		s.cfg.Publisher.Publish(status.Event{
			Channel: status.ChannelWebcam,
			Stage:   status.StageComplete,
			Message: "攝影機影片分析完成",
		})
	} else {
		phase = PhaseFailed
		s.cfg.Publisher.Publish(status.Event{
			Channel: status.ChannelWebcam,
			Stage:   status.StageError,
			Message: fmt.Sprintf("攝影機處理錯誤: %s", result.Message),
		})
	}
	logger.Info("recording finished",
		zap.String("status", string(result.Status)),
		zap.String("output", j.outputPath))
	s.finish(j.id, result, "錄影完成", phase)
}

func (s *Session) record(captureCtx context.Context, j job, logger *zap.Logger) (*Result, error) {
	s.setPhase(j.id, PhaseSearchingCamera)
	src, index, err := s.openCamera(captureCtx, j.cameraHint)
	if err != nil {
		return nil, err
	}
	logger.Debug("camera opened", zap.Int("index", index))

	s.setPhase(j.id, PhaseCapturing)
	frames := s.capture(captureCtx, src, j.duration, logger)
	if err := src.Close(); err != nil {
		logger.Debug("camera close", zap.Error(err))
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	s.cfg.Publisher.Publish(status.Event{
		Channel: status.ChannelWebcam,
		Stage:   status.StageCaptured,
		Message: fmt.Sprintf("已捕捉 %d 幀，開始分析...", len(frames)),
	})

	s.setPhase(j.id, PhaseEncoding)
	if err := s.cfg.Encoder.Encode(s.serviceCtx, frames, s.cfg.FPS, j.outputPath); err != nil {
		return nil, &EncodeError{Err: err}
	}

	s.setPhase(j.id, PhaseAnalyzing)
	batch, err := s.cfg.Analyzer.ProcessVideo(s.serviceCtx, analysis.Request{
		VideoPath: j.outputPath,
		Methods:   []string{j.method},
		APIKey:    j.apiKey,
		Source:    results.SourceWebcam,

		SkipDurationCheck: true,
	})
	if err != nil {
		return nil, err
	}
	if len(batch.Results) == 0 {
		return nil, errors.New("analysis returned no result")
	}

	entry := batch.Results[0]
	if !entry.Succeeded() {
		return &Result{
			Status:    ResultFailed,
			Message:   entry.Summary,
			Metrics:   entry.Metrics,
			VideoPath: j.outputPath,
		}, nil
	}
	return &Result{
		Status:     ResultComplete,
		Message:    entry.Status,
		ResultText: entry.ResultText,
		PlotImage:  entry.PlotImage,
		Metrics:    entry.Metrics,
		VideoPath:  j.outputPath,
	}, nil
}

// capture grabs mirrored frames until the duration elapses, ctx is
// cancelled or the stream ends. Cancellation is checked before every grab.
func (s *Session) capture(ctx context.Context, src media.FrameSource, duration time.Duration, logger *zap.Logger) [][]byte {
	interval := time.Second / time.Duration(s.cfg.FPS)
	start := time.Now()
	frames := make([][]byte, 0, int(duration/interval)+1)

	for n := 1; ; n++ {
		if ctx.Err() != nil {
			logger.Info("capture cancelled", zap.Int("frames", len(frames)))
			break
		}
		if time.Since(start) >= duration {
			break
		}

		frame, err := src.ReadFrame()
		if err != nil {
			logger.Warn("camera stream ended", zap.Int("frames", len(frames)), zap.Error(err))
			break
		}
		mirrored, err := media.MirrorJPEG(frame, s.cfg.JPEGQuality)
		if err != nil {
			logger.Debug("dropping undecodable frame", zap.Error(err))
			continue
		}
		frames = append(frames, mirrored)

		// Best effort pacing toward the target frame rate.
		if wait := time.Until(start.Add(time.Duration(n) * interval)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}
	return frames
}

// openCamera returns an open source that has already produced a frame.
// With hint >= 0 only that index is tried.
func (s *Session) openCamera(ctx context.Context, hint int) (media.FrameSource, int, error) {
	indices := make([]int, 0, s.cfg.ProbeCount)
	if hint >= 0 {
		indices = append(indices, hint)
	} else {
		for i := 0; i < s.cfg.ProbeCount; i++ {
			indices = append(indices, i)
		}
	}

	camErr := &CameraError{}
	for _, i := range indices {
		src, err := media.ProbeFrame(ctx, s.cfg.Camera, i, s.cfg.ProbeTimeout)
		if err == nil {
			return src, i, nil
		}
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		camErr.Attempts = append(camErr.Attempts, probeFailure(i, err))
		s.logger.Debug("camera probe failed", zap.Int("index", i), zap.Error(err))
	}
	camErr.Devices = media.ListVideoDevices()
	return nil, -1, camErr
}

// locateCamera finds the first working index for Start and releases it.
func (s *Session) locateCamera(ctx context.Context) (int, error) {
	src, index, err := s.openCamera(ctx, -1)
	if err != nil {
		return -1, err
	}
	if err := src.Close(); err != nil {
		s.logger.Debug("camera close after probe", zap.Int("index", index), zap.Error(err))
	}
	return index, nil
}

func probeFailure(index int, err error) string {
	if errors.Is(err, media.ErrNoFrame) {
		return fmt.Sprintf("攝影機 %d: 無法讀取影格", index)
	}
	return fmt.Sprintf("攝影機 %d: 無法開啟", index)
}
