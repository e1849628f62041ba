// Package media wraps ffmpeg and ffprobe for webcam capture, encoding and
// probing, plus the small amount of in-process image work (mirroring).
package media

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// DefaultJPEGQuality is used when re-encoding mirrored frames.
const DefaultJPEGQuality = 90

// SplitJpeg is a bufio.SplitFunc that extracts whole JPEG images from an
// MJPEG byte stream by locating the SOI and EOI markers.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// Mirror returns img flipped horizontally.
func Mirror(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	// x' = maxX - x, y' = y - minY
	s2d := f64.Aff3{
		-1, 0, float64(b.Max.X),
		0, 1, float64(-b.Min.Y),
	}
	draw.NearestNeighbor.Transform(dst, s2d, img, b, draw.Src, nil)
	return dst
}

// MirrorJPEG decodes a JPEG frame, flips it horizontally and re-encodes it.
func MirrorJPEG(frame []byte, quality int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Mirror(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
