// Package source provides seekable video sources for the frame pipeline.
package source

import (
	"context"
	"errors"
	"image"
	"math"
)

// ErrReleased is returned by operations on a released source.
var ErrReleased = errors.New("source released")

// MediaSource is a seekable video stream with a decode cursor. A source is owned by
// its opener and must be released when no longer displayed.
type MediaSource interface {
	Width() int
	Height() int
	// Duration in seconds.
	Duration() float64
	// CurrentTime is the position of the decode cursor in seconds.
	CurrentTime() float64
	// Seek moves the cursor and decodes the frame displayed at seconds. It returns
	// once Frame reflects the new position.
	Seek(ctx context.Context, seconds float64) error
	// Frame returns the frame at the cursor, or nil before the first seek.
	Frame() image.Image
	Release() error
}

// Opener creates sources from a locator such as a file path.
type Opener interface {
	Open(ctx context.Context, src string) (MediaSource, error)
}

// LoopTime wraps t into [0, duration) so short clips repeat across a longer timeline.
func LoopTime(t, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	r := math.Mod(t, duration)
	if r < 0 {
		r += duration
	}
	return r
}

// frameIndex maps a time to the index of the frame displayed at it.
func frameIndex(t, fps float64) int {
	return int(math.Floor(t*fps + 1e-9))
}
