package media

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	block  chan struct{}
	closed bool
}

func (s *fakeSource) ReadFrame() ([]byte, error) {
	if s.block != nil {
		<-s.block
		return nil, ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, ErrStreamClosed
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.block != nil {
		close(s.block)
	}
	s.closed = true
	return nil
}

type fakeCamera struct {
	src     *fakeSource
	openErr error
}

func (c *fakeCamera) Open(ctx context.Context, index int) (FrameSource, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.src, nil
}

func TestProbeFrame(t *testing.T) {
	t.Run("frame available", func(t *testing.T) {
		src := &fakeSource{frames: [][]byte{{0xFF, 0xD8, 0xFF, 0xD9}, {1}}}
		got, err := ProbeFrame(context.Background(), &fakeCamera{src: src}, 0, time.Second)
		if err != nil {
			t.Fatalf("ProbeFrame() error = %v", err)
		}
		if src.closed {
			t.Error("source closed on success")
		}
		if f, _ := got.ReadFrame(); len(f) != 1 {
			t.Errorf("next frame = %v, want the second frame", f)
		}
	})

	t.Run("open fails", func(t *testing.T) {
		_, err := ProbeFrame(context.Background(), &fakeCamera{openErr: errors.New("busy")}, 1, time.Second)
		if err == nil || !strings.Contains(err.Error(), "busy") || errors.Is(err, ErrNoFrame) {
			t.Errorf("ProbeFrame() error = %v", err)
		}
	})

	t.Run("read fails", func(t *testing.T) {
		src := &fakeSource{err: errors.New("EIO")}
		_, err := ProbeFrame(context.Background(), &fakeCamera{src: src}, 0, time.Second)
		if !errors.Is(err, ErrNoFrame) || !src.closed {
			t.Errorf("ProbeFrame() error = %v closed = %v", err, src.closed)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		src := &fakeSource{block: make(chan struct{})}
		_, err := ProbeFrame(context.Background(), &fakeCamera{src: src}, 0, 20*time.Millisecond)
		if !errors.Is(err, ErrNoFrame) || !src.closed {
			t.Errorf("ProbeFrame() error = %v closed = %v", err, src.closed)
		}
	})
}

func TestCaptureArgs(t *testing.T) {
	cam := NewFFmpegCamera(CameraConfig{
		InputFormat:    "v4l2",
		DeviceTemplate: "/dev/video%d",
		Width:          1280,
		Height:         720,
		FPS:            30,
	}, nil)

	args := strings.Join(cam.CaptureArgs(2), " ")
	for _, want := range []string{"-f v4l2", "-framerate 30", "-video_size 1280x720", "-i /dev/video2", "-f mjpeg", "pipe:"} {
		if !strings.Contains(args, want) {
			t.Errorf("CaptureArgs() = %q, missing %q", args, want)
		}
	}
	if cam.Device(3) != "/dev/video3" {
		t.Errorf("Device(3) = %q", cam.Device(3))
	}
}

func TestEncodeArgs(t *testing.T) {
	args := strings.Join(EncodeArgs(30, "out/clip.mp4"), " ")
	for _, want := range []string{"-f image2pipe", "-framerate 30", "-i pipe:", "-c:v libx264", "-pix_fmt yuv420p", "out/clip.mp4", "-y"} {
		if !strings.Contains(args, want) {
			t.Errorf("EncodeArgs() = %q, missing %q", args, want)
		}
	}
}

func TestFFmpegEncoder_NoFrames(t *testing.T) {
	enc := NewFFmpegEncoder("", nil)
	if err := enc.Encode(context.Background(), nil, 30, t.TempDir()+"/x.mp4"); !errors.Is(err, ErrNoFrames) {
		t.Errorf("Encode(nil) error = %v, want ErrNoFrames", err)
	}
}
