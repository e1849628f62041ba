package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"vitals_backend/core"
)

var (
	// ErrStreamClosed is returned by ReadFrame after Close or process exit.
	ErrStreamClosed = errors.New("camera stream closed")
	// ErrNoFrame means the device opened but produced no frame while probing.
	ErrNoFrame = errors.New("無法讀取影格")
)

// maxFrameBytes bounds one MJPEG frame in the scanner buffer.
const maxFrameBytes = 8 << 20

// Camera opens video capture devices by index.
type Camera interface {
	Open(ctx context.Context, index int) (FrameSource, error)
}

// FrameSource yields JPEG-encoded frames in capture order.
type FrameSource interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// CameraConfig describes how ffmpeg reaches the capture device.
type CameraConfig struct {
	FFmpegPath     string
	InputFormat    string // v4l2, avfoundation, dshow
	DeviceTemplate string // fmt template taking the index, e.g. /dev/video%d
	Width          int
	Height         int
	FPS            int
}

// DefaultInputFormat returns the ffmpeg capture demuxer for the current OS.
func DefaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

// DefaultDeviceTemplate returns the device naming scheme for the current OS.
func DefaultDeviceTemplate() string {
	switch runtime.GOOS {
	case "darwin":
		return "%d"
	case "windows":
		return "video=%d"
	default:
		return "/dev/video%d"
	}
}

// FFmpegCamera captures MJPEG frames from ffmpeg's stdout.
type FFmpegCamera struct {
	cfg    CameraConfig
	logger *zap.Logger
}

// NewFFmpegCamera fills unset fields with platform defaults.
func NewFFmpegCamera(cfg CameraConfig, logger *zap.Logger) *FFmpegCamera {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = DefaultInputFormat()
	}
	if cfg.DeviceTemplate == "" {
		cfg.DeviceTemplate = DefaultDeviceTemplate()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegCamera{cfg: cfg, logger: logger}
}

// Device returns the ffmpeg input name for index.
func (c *FFmpegCamera) Device(index int) string {
	return fmt.Sprintf(c.cfg.DeviceTemplate, index)
}

// CaptureArgs returns the ffmpeg arguments (without the executable) used to
// stream device index as MJPEG on stdout.
func (c *FFmpegCamera) CaptureArgs(index int) []string {
	inputArgs := ffmpeg.KwArgs{
		"f":         c.cfg.InputFormat,
		"framerate": c.cfg.FPS,
	}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		inputArgs["video_size"] = fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height)
	}

	stream := ffmpeg.Input(c.Device(index), inputArgs).
		Output("pipe:", ffmpeg.KwArgs{"f": "mjpeg", "q:v": 5}).
		GlobalArgs("-hide_banner", "-loglevel", "error")
	return stream.Compile().Args[1:]
}

// Open starts ffmpeg for the device. The process lives until Close or ctx ends.
func (c *FFmpegCamera) Open(ctx context.Context, index int) (FrameSource, error) {
	procCtx, cancel := context.WithCancel(ctx)
	cmd := core.WrapCommand(exec.CommandContext(procCtx, c.cfg.FFmpegPath, c.CaptureArgs(index)...))
	cmd.WaitDelay = time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("camera %d: stdout pipe: %w", index, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("camera %d: start ffmpeg: %w", index, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 512<<10), maxFrameBytes)
	scanner.Split(SplitJpeg)

	c.logger.Debug("camera stream started",
		zap.Int("index", index),
		zap.String("device", c.Device(index)),
		zap.String("format", c.cfg.InputFormat))

	return &ffmpegStream{
		index:   index,
		cmd:     cmd,
		cancel:  cancel,
		scanner: scanner,
	}, nil
}

type ffmpegStream struct {
	index   int
	cmd     *core.SafeCommand
	cancel  context.CancelFunc
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) ReadFrame() ([]byte, error) {
	if s.scanner.Scan() {
		frame := make([]byte, len(s.scanner.Bytes()))
		copy(frame, s.scanner.Bytes())
		return frame, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("camera %d: %w", s.index, err)
	}
	if tail := s.cmd.StderrTail(); tail != "" {
		return nil, fmt.Errorf("camera %d: %w: %s", s.index, ErrStreamClosed, tail)
	}
	return nil, ErrStreamClosed
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// ProbeFrame opens index and waits up to timeout for one frame. The
// returned source is ready for further reads; on error nothing is left open.
func ProbeFrame(ctx context.Context, cam Camera, index int, timeout time.Duration) (FrameSource, error) {
	src, err := cam.Open(ctx, index)
	if err != nil {
		return nil, err
	}

	type result struct {
		frame []byte
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := src.ReadFrame()
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			src.Close()
			return nil, fmt.Errorf("%w: %w", ErrNoFrame, r.err)
		}
		if len(r.frame) == 0 {
			src.Close()
			return nil, ErrNoFrame
		}
		return src, nil
	case <-time.After(timeout):
		src.Close()
		<-ch
		return nil, fmt.Errorf("%w: no frame within %s", ErrNoFrame, timeout)
	case <-ctx.Done():
		src.Close()
		<-ch
		return nil, ctx.Err()
	}
}

// ListVideoDevices returns the capture device nodes visible on this system.
// Only Linux exposes them as files; elsewhere it returns nil.
func ListVideoDevices() []string {
	if runtime.GOOS != "linux" {
		return nil
	}
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}
