package compositor

import (
	"image"
	"sync"
	"sync/atomic"
)

// Frame is an immutable snapshot of the canvas. Its pixel buffer is pooled and
// returns to the pool on Release; using a frame after release is a bug.
type Frame struct {
	// Timestamp in microseconds.
	Timestamp int64

	img      *image.RGBA
	pool     *framePool
	released atomic.Bool
}

// Image returns the frame pixels.
func (f *Frame) Image() *image.RGBA { return f.img }

// Bytes returns the packed RGBA pixels.
func (f *Frame) Bytes() []byte { return f.img.Pix }

// Width returns the frame width.
func (f *Frame) Width() int { return f.img.Rect.Dx() }

// Height returns the frame height.
func (f *Frame) Height() int { return f.img.Rect.Dy() }

// Release returns the frame's buffer to the pool. Releasing twice is a no-op.
func (f *Frame) Release() {
	if !f.released.CompareAndSwap(false, true) {
		return
	}
	if f.pool != nil {
		f.pool.put(f.img)
	}
	f.img = nil
}

type framePool struct {
	width, height int
	pool          sync.Pool
	outstanding   atomic.Int64
}

func newFramePool(width, height int) *framePool {
	p := &framePool{width: width, height: height}
	p.pool.New = func() any {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return p
}

func (p *framePool) get() *Frame {
	p.outstanding.Add(1)
	return &Frame{img: p.pool.Get().(*image.RGBA), pool: p}
}

func (p *framePool) put(img *image.RGBA) {
	p.outstanding.Add(-1)
	p.pool.Put(img)
}

// NewFrame wraps an existing image as an unpooled frame.
func NewFrame(img *image.RGBA, timestampMicros int64) *Frame {
	return &Frame{img: img, Timestamp: timestampMicros}
}
