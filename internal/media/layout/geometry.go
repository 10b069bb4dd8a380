package layout

import (
	"image"
	"math"
)

const (
	// OverlaySizeFraction is the overlay side relative to the shorter canvas dimension.
	OverlaySizeFraction = 0.25
	// OverlayMargin is the distance between an anchored overlay and the canvas edge.
	OverlayMargin = 0
)

// Rect is a rectangle in fractional canvas coordinates, each component in [0, 1].
type Rect struct {
	X, Y, W, H float64
}

// Overlaps reports whether r and o share any area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Within reports whether r lies inside the unit square.
func (r Rect) Within() bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0 && r.X+r.W <= 1 && r.Y+r.H <= 1
}

// OverlaySide returns the pixel side of an overlay square on a width x height canvas.
func OverlaySide(width, height int) int {
	return int(math.Round(float64(min(width, height)) * OverlaySizeFraction))
}

// PixelGeometry returns the canvas rectangle of slot. Center covers the whole frame;
// outer slots are squares anchored to their edge or corner.
func PixelGeometry(slot Position, width, height int) image.Rectangle {
	if slot == Center || !slot.IsOverlay() {
		return image.Rect(0, 0, width, height)
	}
	side := OverlaySide(width, height)
	row, col := slot.Cell()
	x := anchor(col, width, side)
	y := anchor(row, height, side)
	return image.Rect(x, y, x+side, y+side)
}

// anchor places a span of size along an axis: index 0 hugs the start, 1 is centered, 2 hugs the end.
func anchor(index, extent, size int) int {
	switch index {
	case 0:
		return OverlayMargin
	case 1:
		return int(math.Round(float64(extent-size) / 2))
	default:
		return extent - size - OverlayMargin
	}
}

// GeometryFor returns slot's rectangle as fractions of a width x height canvas.
func GeometryFor(slot Position, width, height int) Rect {
	if width <= 0 || height <= 0 {
		return Rect{}
	}
	r := PixelGeometry(slot, width, height)
	w, h := float64(width), float64(height)
	return Rect{
		X: float64(r.Min.X) / w,
		Y: float64(r.Min.Y) / h,
		W: float64(r.Dx()) / w,
		H: float64(r.Dy()) / h,
	}
}

// GridCellGeometry is the earlier uniform 3x3 tiling where every slot, center
// included, is one third of the canvas on each axis. Position indices are shared
// with the anchored layout so saved projects remain valid under either scheme.
func GridCellGeometry(slot Position) Rect {
	row, col := slot.Cell()
	const third = 1.0 / 3
	return Rect{X: float64(col) * third, Y: float64(row) * third, W: third, H: third}
}
