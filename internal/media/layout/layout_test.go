package layout

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisiblePositionsCounts(t *testing.T) {
	for count := -2; count <= 10; count++ {
		got := VisiblePositions(count)
		want := max(0, min(TotalOverlayPositions, count))
		require.Len(t, got, want, "count %d", count)

		seen := map[Position]bool{}
		for _, p := range got {
			assert.True(t, p.IsOverlay(), "count %d returned %v", count, p)
			assert.False(t, seen[p], "count %d duplicated %v", count, p)
			seen[p] = true
		}
	}
}

func TestVisiblePositionsSymmetryFirst(t *testing.T) {
	assert.Equal(t, []Position{TopCenter}, VisiblePositions(1))
	assert.Equal(t, []Position{TopCenter, BottomCenter}, VisiblePositions(2))
	assert.Equal(t, []Position{TopCenter, BottomCenter, MiddleLeft, MiddleRight}, VisiblePositions(4))
	assert.Equal(t, []Position{1, 6, 3, 4, 0, 2, 5}, VisiblePositions(7))
}

func TestVisiblePositionsAll(t *testing.T) {
	got := VisiblePositions(8)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, AllPositions(), got)
	assert.Equal(t, VisiblePositions(8), VisiblePositions(100))
}

func TestPositionCells(t *testing.T) {
	want := map[Position][2]int{
		TopLeft: {0, 0}, TopCenter: {0, 1}, TopRight: {0, 2},
		MiddleLeft: {1, 0}, MiddleRight: {1, 2},
		BottomLeft: {2, 0}, BottomCenter: {2, 1}, BottomRight: {2, 2},
		Center: {1, 1},
	}
	for p, rc := range want {
		row, col := p.Cell()
		assert.Equal(t, rc, [2]int{row, col}, p.String())
	}
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition("Top-Center")
	require.NoError(t, err)
	assert.Equal(t, TopCenter, p)

	p, err = ParsePosition("7")
	require.NoError(t, err)
	assert.Equal(t, BottomRight, p)

	p, err = ParsePosition("center")
	require.NoError(t, err)
	assert.Equal(t, Center, p)

	for _, bad := range []string{"8", "-1", "upper", ""} {
		_, err := ParsePosition(bad)
		assert.Error(t, err, bad)
	}
	assert.Len(t, Names(), 9)
}

func TestPixelGeometryAnchors(t *testing.T) {
	const w, h = 1920, 1080
	side := OverlaySide(w, h)
	assert.Equal(t, 270, side)

	assert.Equal(t, 0, PixelGeometry(TopLeft, w, h).Min.X)
	assert.Equal(t, 0, PixelGeometry(TopLeft, w, h).Min.Y)
	assert.Equal(t, 825, PixelGeometry(TopCenter, w, h).Min.X)
	assert.Equal(t, w-side, PixelGeometry(TopRight, w, h).Min.X)
	assert.Equal(t, 405, PixelGeometry(MiddleLeft, w, h).Min.Y)
	assert.Equal(t, h-side, PixelGeometry(BottomCenter, w, h).Min.Y)

	center := PixelGeometry(Center, w, h)
	assert.Equal(t, w, center.Dx())
	assert.Equal(t, h, center.Dy())
}

func TestGeometryWithinAndDisjoint(t *testing.T) {
	sizes := [][2]int{{1920, 1080}, {1080, 1920}, {640, 480}, {8, 8}, {300, 300}}
	for _, size := range sizes {
		rects := make([]Rect, 0, TotalOverlayPositions)
		for _, p := range AllPositions() {
			r := GeometryFor(p, size[0], size[1])
			assert.True(t, r.Within(), "%v %v out of bounds: %+v", size, p, r)
			assert.InDelta(t, r.W*float64(size[0]), r.H*float64(size[1]), 1e-9, "overlay must be square")
			rects = append(rects, r)
		}
		for i := range rects {
			for j := i + 1; j < len(rects); j++ {
				assert.False(t, rects[i].Overlaps(rects[j]), "%v: %v overlaps %v", size, Position(i), Position(j))
			}
		}
		assert.Equal(t, Rect{0, 0, 1, 1}, GeometryFor(Center, size[0], size[1]))
	}
}

func TestGridCellGeometry(t *testing.T) {
	for i, a := range AllPositions() {
		ra := GridCellGeometry(a)
		assert.True(t, ra.Within())
		assert.False(t, ra.Overlaps(GridCellGeometry(Center)))
		for _, b := range AllPositions()[i+1:] {
			assert.False(t, ra.Overlaps(GridCellGeometry(b)))
		}
	}
}

func TestGridCellGeometryOutOfRange(t *testing.T) {
	middle := GridCellGeometry(Center)
	for _, p := range []Position{Position(TotalOverlayPositions), Position(42), Position(-2)} {
		var r Rect
		require.NotPanics(t, func() { r = GridCellGeometry(p) }, p.String())
		assert.Equal(t, middle, r, p.String())
		row, col := p.Cell()
		assert.Equal(t, [2]int{1, 1}, [2]int{row, col}, p.String())
	}
}

func TestGridAssignmentSetAndSwap(t *testing.T) {
	g, err := NewGridAssignment("a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6, 3}, g.Positions())
	assert.Equal(t, []string{"a", "b", "c"}, g.OverlayIDs())

	require.NoError(t, g.Swap(TopCenter, MiddleLeft))
	it, ok := g.At(TopCenter)
	require.True(t, ok)
	assert.Equal(t, "c", it.ID)
	it, _ = g.At(MiddleLeft)
	assert.Equal(t, "a", it.ID)
	require.NoError(t, g.Validate())

	assert.ErrorIs(t, g.Swap(TopCenter, BottomRight), ErrPositionNotVisible)
	require.NoError(t, g.Validate())

	require.NoError(t, g.Move(BottomCenter, TopCenter))
	it, _ = g.At(TopCenter)
	assert.Equal(t, "b", it.ID)

	g.Clear()
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.VisiblePositions())
}

func TestGridAssignmentLimits(t *testing.T) {
	_, err := NewGridAssignment("1", "2", "3", "4", "5", "6", "7", "8", "9")
	assert.ErrorIs(t, err, ErrTooManyOverlays)
}

func TestFromProject(t *testing.T) {
	g, err := FromProject([]string{"x", "y"}, []int{6, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{6, 1}, g.Positions())

	_, err = FromProject([]string{"x"}, []int{1, 6})
	assert.Error(t, err)

	_, err = FromProject([]string{"x", "y"}, []int{1, 1})
	assert.Error(t, err)

	_, err = FromProject([]string{"x"}, []int{7})
	assert.ErrorIs(t, err, ErrPositionNotVisible)
}
