package source

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// ImageSource is an in-memory source made of still frames shown at a fixed rate.
type ImageSource struct {
	mu       sync.Mutex
	frames   []image.Image
	fps      float64
	width    int
	height   int
	current  int
	time     float64
	seeks    []float64
	released bool
}

// NewImageSource creates a source showing each frame for 1/fps seconds.
func NewImageSource(fps float64, frames ...image.Image) *ImageSource {
	s := &ImageSource{frames: frames, fps: fps, current: -1}
	if len(frames) > 0 {
		b := frames[0].Bounds()
		s.width, s.height = b.Dx(), b.Dy()
	}
	return s
}

// NewColorSource creates a single-color source of the given size and duration.
func NewColorSource(width, height int, duration float64, c color.Color) *ImageSource {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return NewImageSource(1/duration, img)
}

func (s *ImageSource) Width() int  { return s.width }
func (s *ImageSource) Height() int { return s.height }

func (s *ImageSource) Duration() float64 {
	if s.fps <= 0 {
		return 0
	}
	return float64(len(s.frames)) / s.fps
}

func (s *ImageSource) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

func (s *ImageSource) Seek(ctx context.Context, seconds float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	idx := frameIndex(seconds, s.fps)
	if idx >= len(s.frames) {
		idx = len(s.frames) - 1
	}
	if idx < 0 {
		idx = 0
	}
	s.current = idx
	s.time = seconds
	s.seeks = append(s.seeks, seconds)
	return nil
}

func (s *ImageSource) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 || len(s.frames) == 0 {
		return nil
	}
	return s.frames[s.current]
}

func (s *ImageSource) Release() error {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	return nil
}

// Released reports whether Release was called.
func (s *ImageSource) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Seeks returns every position the source was sought to.
func (s *ImageSource) Seeks() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.seeks...)
}
