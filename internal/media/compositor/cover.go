package compositor

import (
	"image"
	"image/draw"
	"math"
)

// cropRect is a source region in floating point pixels.
type cropRect struct {
	x, y, w, h float64
}

// CoverCrop returns the centered region of a srcW x srcH image that, scaled to
// dstW x dstH, fills the destination with no bars and no distortion. A source
// wider than the destination is fit to height and cropped on width; otherwise it
// is fit to width and cropped on height.
func CoverCrop(srcW, srcH, dstW, dstH int) (x, y, w, h float64) {
	c := coverCrop(srcW, srcH, dstW, dstH)
	return c.x, c.y, c.w, c.h
}

func coverCrop(srcW, srcH, dstW, dstH int) cropRect {
	sw, sh := float64(srcW), float64(srcH)
	dw, dh := float64(dstW), float64(dstH)
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 {
		return cropRect{}
	}
	srcRatio := sw / sh
	dstRatio := dw / dh
	if srcRatio > dstRatio {
		visible := sh * dstRatio
		return cropRect{x: (sw - visible) / 2, y: 0, w: visible, h: sh}
	}
	visible := sw / dstRatio
	return cropRect{x: 0, y: (sh - visible) / 2, w: sw, h: visible}
}

// toRGBA returns img as *image.RGBA with bounds starting at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// drawCover draws src into the full dst rectangle r with cover semantics and
// bilinear sampling, clipped to clip. Pixels are composited source-over.
func drawCover(dst *image.RGBA, r, clip image.Rectangle, src *image.RGBA) {
	area := r.Intersect(clip).Intersect(dst.Bounds())
	if area.Empty() {
		return
	}
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	c := coverCrop(sw, sh, r.Dx(), r.Dy())
	if c.w == 0 || c.h == 0 {
		return
	}
	scaleX := c.w / float64(r.Dx())
	scaleY := c.h / float64(r.Dy())

	for py := area.Min.Y; py < area.Max.Y; py++ {
		fy := c.y + (float64(py-r.Min.Y)+0.5)*scaleY - 0.5
		y0, y1, wy := sampleAxis(fy, sh)
		row0 := y0 * src.Stride
		row1 := y1 * src.Stride
		out := dst.PixOffset(area.Min.X, py)

		for px := area.Min.X; px < area.Max.X; px++ {
			fx := c.x + (float64(px-r.Min.X)+0.5)*scaleX - 0.5
			x0, x1, wx := sampleAxis(fx, sw)

			var px4 [4]float64
			for ch := 0; ch < 4; ch++ {
				p00 := float64(src.Pix[row0+x0*4+ch])
				p01 := float64(src.Pix[row0+x1*4+ch])
				p10 := float64(src.Pix[row1+x0*4+ch])
				p11 := float64(src.Pix[row1+x1*4+ch])
				top := p00 + (p01-p00)*wx
				bottom := p10 + (p11-p10)*wx
				px4[ch] = top + (bottom-top)*wy
			}

			// Premultiplied source-over.
			inv := 1 - px4[3]/255
			for ch := 0; ch < 4; ch++ {
				v := px4[ch] + float64(dst.Pix[out+ch])*inv
				dst.Pix[out+ch] = clamp8(v)
			}
			out += 4
		}
	}
}

// sampleAxis returns the two neighbouring sample indices around f and the weight of the second.
func sampleAxis(f float64, n int) (i0, i1 int, w float64) {
	if f <= 0 {
		return 0, 0, 0
	}
	maxIdx := float64(n - 1)
	if f >= maxIdx {
		return n - 1, n - 1, 0
	}
	fl := math.Floor(f)
	i0 = int(fl)
	return i0, i0 + 1, f - fl
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
