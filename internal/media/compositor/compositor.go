// Package compositor draws the main source and overlay sources into one raster
// surface and snapshots it into frames for the encoder.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strconv"
	"strings"

	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// ErrUnsupportedGeometry is returned for canvas sizes the compositor cannot allocate.
var ErrUnsupportedGeometry = errors.New("unsupported canvas geometry")

// MaxDimension bounds either side of the canvas.
const MaxDimension = 8192

// DefaultBackground is the clear color used by Composite.
var DefaultBackground = color.RGBA{A: 0xff}

// Drawable is anything holding a current frame, such as a source.MediaSource.
type Drawable interface {
	Frame() image.Image
}

// Layer places one source at one slot.
type Layer struct {
	Slot   layout.Position
	Source Drawable
}

// Compositor owns the raster surface. It is not safe for concurrent use; the
// surface is overwritten on every Composite and read only through FrameAt.
type Compositor struct {
	width, height int
	canvas        *image.RGBA
	background    color.Color
	frames        *framePool
	logger        *slog.Logger
}

// New allocates a width x height surface.
func New(width, height int) (*Compositor, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnsupportedGeometry, width, height)
	}
	return &Compositor{
		width:      width,
		height:     height,
		canvas:     image.NewRGBA(image.Rect(0, 0, width, height)),
		background: DefaultBackground,
		frames:     newFramePool(width, height),
		logger:     util.ComponentLogger(nil, "compositor"),
	}, nil
}

// Width returns the canvas width.
func (c *Compositor) Width() int { return c.width }

// Height returns the canvas height.
func (c *Compositor) Height() int { return c.height }

// SetBackground changes the color Composite clears to.
func (c *Compositor) SetBackground(col color.Color) {
	c.background = col
}

// Canvas exposes the surface for inspection. Callers must not retain it across
// Composite calls; use FrameAt for a stable copy.
func (c *Compositor) Canvas() *image.RGBA {
	return c.canvas
}

// Clear fills the whole canvas with col.
func (c *Compositor) Clear(col color.Color) {
	draw.Draw(c.canvas, c.canvas.Bounds(), &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// DrawSource draws src's current frame into slot's rectangle with cover scaling.
// A source without a frame draws nothing.
func (c *Compositor) DrawSource(src Drawable, slot layout.Position) {
	frame := src.Frame()
	if frame == nil {
		c.logger.Debug("Skipping source without frame", "slot", slot)
		return
	}
	r := layout.PixelGeometry(slot, c.width, c.height)
	drawCover(c.canvas, r, r, toRGBA(frame))
}

// Composite clears the canvas and draws layers in order; later layers sit on top.
func (c *Compositor) Composite(layers []Layer) {
	c.Clear(c.background)
	for _, l := range layers {
		c.DrawSource(l.Source, l.Slot)
	}
}

// FrameAt snapshots the canvas into an opaque frame tagged with timestampMicros.
// The frame must be released after use.
func (c *Compositor) FrameAt(timestampMicros int64) *Frame {
	f := c.frames.get()
	copy(f.img.Pix, c.canvas.Pix)
	for i := 3; i < len(f.img.Pix); i += 4 {
		f.img.Pix[i] = 0xff
	}
	f.Timestamp = timestampMicros
	return f
}

// Outstanding returns the number of frames obtained and not yet released.
func (c *Compositor) Outstanding() int {
	return int(c.frames.outstanding.Load())
}

// ParseHexColor parses "#rgb" or "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
