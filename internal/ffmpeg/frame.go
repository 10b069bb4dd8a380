package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// FrameExtractor decodes single frames from a media file as packed RGBA.
type FrameExtractor struct {
	Path   string
	Runner Runner
}

// NewFrameExtractor creates an extractor for the given ffmpeg binary.
func NewFrameExtractor(path string) *FrameExtractor {
	if path == "" {
		path = "ffmpeg"
	}
	return &FrameExtractor{Path: path, Runner: ExecRunner{}}
}

// ExtractRGBA decodes the frame displayed at seconds and returns width*height*4 bytes.
// An empty slice means the position is past the last decodable frame.
func (e *FrameExtractor) ExtractRGBA(ctx context.Context, path string, seconds float64, width, height int) ([]byte, error) {
	res, err := e.Runner.Run(ctx, e.Path, FrameArgs(path, seconds, width, height)...)
	if err != nil {
		return nil, fmt.Errorf("extract frame at %.3fs: %w: %s", seconds, err, strings.TrimSpace(res.Stderr))
	}
	data := []byte(res.Stdout)
	if len(data) == 0 {
		return nil, nil
	}
	if want := width * height * 4; len(data) < want {
		return nil, fmt.Errorf("short frame at %.3fs: got %d bytes, want %d", seconds, len(data), want)
	}
	return data[:width*height*4], nil
}

// FrameArgs builds the ffmpeg arguments for a single-frame seek.
func FrameArgs(path string, seconds float64, width, height int) []string {
	return []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(seconds, 'f', 6, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
}
