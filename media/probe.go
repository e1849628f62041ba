package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrUnknownDuration means the container carried no usable duration metadata.
var ErrUnknownDuration = errors.New("video duration unavailable")

// DefaultProbeTimeout bounds one ffprobe run.
const DefaultProbeTimeout = 15 * time.Second

// Prober reads container metadata.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// FFprobe measures duration with ffprobe's JSON output.
type FFprobe struct {
	Timeout time.Duration
}

// Duration implements Prober. The effective timeout is the smaller of
// p.Timeout and the context deadline.
func (p FFprobe) Duration(ctx context.Context, path string) (time.Duration, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbeDuration([]byte(out))
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Duration     string `json:"duration"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// ParseProbeDuration extracts a duration from ffprobe JSON. It prefers the
// container duration, then the video stream duration, then frame count
// divided by frame rate.
func ParseProbeDuration(data []byte) (time.Duration, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}

	if d, ok := parseSeconds(out.Format.Duration); ok {
		return d, nil
	}
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		if d, ok := parseSeconds(s.Duration); ok {
			return d, nil
		}
		frames, err := strconv.ParseFloat(s.NbFrames, 64)
		if err != nil || frames <= 0 {
			continue
		}
		rate := parseRate(s.AvgFrameRate)
		if rate <= 0 {
			rate = parseRate(s.RFrameRate)
		}
		if rate > 0 {
			return time.Duration(frames / rate * float64(time.Second)), nil
		}
	}
	return 0, ErrUnknownDuration
}

func parseSeconds(s string) (time.Duration, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return time.Duration(v * float64(time.Second)), true
}

// parseRate parses "30000/1001" or "30".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
