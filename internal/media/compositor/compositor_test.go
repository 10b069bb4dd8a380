package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stillSource struct {
	img image.Image
}

func (s stillSource) Frame() image.Image { return s.img }

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

func TestCoverCrop(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		x, y, w, h             float64
	}{
		{"wider source crops width", 200, 100, 100, 100, 50, 0, 100, 100},
		{"taller source crops height", 100, 400, 100, 100, 0, 150, 100, 100},
		{"same ratio keeps all", 160, 90, 320, 180, 0, 0, 160, 90},
		{"landscape into portrait", 1920, 1080, 270, 480, 656.25, 0, 607.5, 1080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := CoverCrop(tt.srcW, tt.srcH, tt.dstW, tt.dstH)
			assert.InDelta(t, tt.x, x, 1e-9)
			assert.InDelta(t, tt.y, y, 1e-9)
			assert.InDelta(t, tt.w, w, 1e-9)
			assert.InDelta(t, tt.h, h, 1e-9)
			// The crop keeps the destination aspect ratio.
			assert.InDelta(t, float64(tt.dstW)/float64(tt.dstH), w/h, 1e-9)
		})
	}
}

func TestNewRejectsBadGeometry(t *testing.T) {
	for _, size := range [][2]int{{0, 10}, {10, -1}, {MaxDimension + 1, 10}} {
		_, err := New(size[0], size[1])
		assert.ErrorIs(t, err, ErrUnsupportedGeometry)
	}
}

func TestClearAndParseHexColor(t *testing.T) {
	c, err := New(4, 4)
	require.NoError(t, err)

	col, err := ParseHexColor("#ff8000")
	require.NoError(t, err)
	c.Clear(col)
	assert.Equal(t, color.RGBA{R: 255, G: 128, A: 255}, rgbaAt(c.Canvas(), 3, 3))

	short, err := ParseHexColor("#0f0")
	require.NoError(t, err)
	assert.Equal(t, green, short)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	assert.Error(t, err)
}

func TestCompositeCenterCoversFrame(t *testing.T) {
	c, err := New(16, 8)
	require.NoError(t, err)

	c.Composite([]Layer{{Slot: layout.Center, Source: stillSource{solid(4, 4, red)}}})
	for _, p := range []image.Point{{0, 0}, {15, 0}, {0, 7}, {15, 7}, {8, 4}} {
		assert.Equal(t, red, rgbaAt(c.Canvas(), p.X, p.Y), "pixel %v", p)
	}
}

func TestCompositeCoverCropsCentered(t *testing.T) {
	// Left half red, right half blue; drawn into a square the middle columns survive.
	src := solid(40, 10, red)
	draw.Draw(src, image.Rect(20, 0, 40, 10), &image.Uniform{C: blue}, image.Point{}, draw.Src)

	c, err := New(10, 10)
	require.NoError(t, err)
	c.DrawSource(stillSource{src}, layout.Center)

	assert.Equal(t, red, rgbaAt(c.Canvas(), 2, 5))
	assert.Equal(t, blue, rgbaAt(c.Canvas(), 7, 5))
}

func TestCompositeOverlayOrderAndClip(t *testing.T) {
	c, err := New(40, 40)
	require.NoError(t, err)
	c.SetBackground(color.RGBA{A: 255})

	c.Composite([]Layer{
		{Slot: layout.Center, Source: stillSource{solid(40, 40, red)}},
		{Slot: layout.TopLeft, Source: stillSource{solid(30, 10, blue)}},
		{Slot: layout.BottomRight, Source: stillSource{nil}},
	})

	r := layout.PixelGeometry(layout.TopLeft, 40, 40)
	assert.Equal(t, image.Rect(0, 0, 10, 10), r)
	assert.Equal(t, blue, rgbaAt(c.Canvas(), 0, 0))
	assert.Equal(t, blue, rgbaAt(c.Canvas(), 9, 9))
	// Outside the overlay square the main source shows through.
	assert.Equal(t, red, rgbaAt(c.Canvas(), 10, 10))
	assert.Equal(t, red, rgbaAt(c.Canvas(), 10, 0))
	assert.Equal(t, red, rgbaAt(c.Canvas(), 39, 39))
}

func TestCompositeClearsBetweenFrames(t *testing.T) {
	c, err := New(8, 8)
	require.NoError(t, err)

	c.Composite([]Layer{{Slot: layout.Center, Source: stillSource{solid(8, 8, green)}}})
	c.Composite(nil)
	assert.Equal(t, DefaultBackground, rgbaAt(c.Canvas(), 4, 4))
}

func TestFrameAtSnapshotsOpaque(t *testing.T) {
	c, err := New(4, 2)
	require.NoError(t, err)
	c.Clear(color.RGBA{R: 10, A: 10})

	f := c.FrameAt(33_333)
	assert.Equal(t, int64(33_333), f.Timestamp)
	assert.Equal(t, 4, f.Width())
	assert.Equal(t, 2, f.Height())
	for i := 3; i < len(f.Bytes()); i += 4 {
		assert.Equal(t, uint8(0xff), f.Bytes()[i])
	}

	// Later drawing does not change the snapshot.
	c.Clear(blue)
	assert.Equal(t, uint8(10), f.Bytes()[0])

	assert.Equal(t, 1, c.Outstanding())
	f.Release()
	f.Release()
	assert.Equal(t, 0, c.Outstanding())
}

func TestDrawSourceAcceptsNonRGBAImages(t *testing.T) {
	gray := image.NewGray(image.Rect(5, 5, 9, 9))
	for i := range gray.Pix {
		gray.Pix[i] = 200
	}
	c, err := New(4, 4)
	require.NoError(t, err)
	c.DrawSource(stillSource{gray}, layout.Center)
	assert.Equal(t, color.RGBA{R: 200, G: 200, B: 200, A: 255}, rgbaAt(c.Canvas(), 1, 1))
}
