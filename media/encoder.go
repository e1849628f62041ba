package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"vitals_backend/core"
)

// ErrNoFrames is returned when asked to encode an empty frame sequence.
var ErrNoFrames = errors.New("no frames to encode")

// Encoder writes an ordered JPEG frame sequence into a video container.
type Encoder interface {
	Encode(ctx context.Context, frames [][]byte, fps int, outputPath string) error
}

// FFmpegEncoder pipes frames into ffmpeg (image2pipe) and writes H.264 mp4.
type FFmpegEncoder struct {
	ffmpegPath string
	logger     *zap.Logger
}

// NewFFmpegEncoder creates an encoder using the given ffmpeg binary.
func NewFFmpegEncoder(ffmpegPath string, logger *zap.Logger) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, logger: logger}
}

// EncodeArgs returns the ffmpeg arguments (without the executable).
func EncodeArgs(fps int, outputPath string) []string {
	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "image2pipe",
		"c:v":       "mjpeg",
		"framerate": fps,
	}).
		Output(outputPath, ffmpeg.KwArgs{
			"c:v":      "libx264",
			"pix_fmt":  "yuv420p",
			"preset":   "veryfast",
			"vf":       "scale=trunc(iw/2)*2:trunc(ih/2)*2",
			"movflags": "+faststart",
		}).
		OverWriteOutput().
		GlobalArgs("-hide_banner", "-loglevel", "error")
	return stream.Compile().Args[1:]
}

// Encode blocks until ffmpeg has written outputPath. Any failure removes
// the partial output.
func (e *FFmpegEncoder) Encode(ctx context.Context, frames [][]byte, fps int, outputPath string) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if fps <= 0 {
		fps = 30
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create video directory: %w", err)
	}

	readers := make([]io.Reader, len(frames))
	for i, f := range frames {
		readers[i] = bytes.NewReader(f)
	}

	cmd := core.WrapCommand(exec.CommandContext(ctx, e.ffmpegPath, EncodeArgs(fps, outputPath)...))
	cmd.Stdin = io.MultiReader(readers...)

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		e.logger.Error("ffmpeg encode failed",
			zap.String("output", outputPath),
			zap.Int("frames", len(frames)),
			zap.String("stderr", cmd.StderrTail()),
			zap.Error(err))
		return fmt.Errorf("encode %d frames to %s: %w", len(frames), outputPath, err)
	}

	e.logger.Info("video encoded",
		zap.String("output", outputPath),
		zap.Int("frames", len(frames)),
		zap.Int("fps", fps))
	return nil
}
