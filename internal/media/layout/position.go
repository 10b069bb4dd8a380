// Package layout maps overlay counts to slot positions around the main video and
// slot positions to canvas geometry.
package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vishalkuo/bimap"
)

// Position is one of the eight outer slots of the 3x3 layout, or Center.
// Values 0..7 are persisted in projects and must stay stable.
type Position int

const (
	TopLeft Position = iota
	TopCenter
	TopRight
	MiddleLeft
	MiddleRight
	BottomLeft
	BottomCenter
	BottomRight

	// Center is the full-frame slot of the main video.
	Center Position = -1
)

// TotalOverlayPositions is the number of outer slots.
const TotalOverlayPositions = 8

// PriorityOrder fills opposite pairs before corners so small counts stay symmetric.
var PriorityOrder = [TotalOverlayPositions]Position{
	TopCenter,
	BottomCenter,
	MiddleLeft,
	MiddleRight,
	TopLeft,
	TopRight,
	BottomLeft,
	BottomRight,
}

var cells = [TotalOverlayPositions]struct{ row, col int }{
	TopLeft:      {0, 0},
	TopCenter:    {0, 1},
	TopRight:     {0, 2},
	MiddleLeft:   {1, 0},
	MiddleRight:  {1, 2},
	BottomLeft:   {2, 0},
	BottomCenter: {2, 1},
	BottomRight:  {2, 2},
}

var names = func() *bimap.BiMap[string, Position] {
	m := bimap.NewBiMap[string, Position]()
	m.Insert("top-left", TopLeft)
	m.Insert("top-center", TopCenter)
	m.Insert("top-right", TopRight)
	m.Insert("middle-left", MiddleLeft)
	m.Insert("middle-right", MiddleRight)
	m.Insert("bottom-left", BottomLeft)
	m.Insert("bottom-center", BottomCenter)
	m.Insert("bottom-right", BottomRight)
	m.Insert("center", Center)
	m.MakeImmutable()
	return m
}()

// AllPositions returns the eight outer positions in ascending order.
func AllPositions() []Position {
	out := make([]Position, TotalOverlayPositions)
	for i := range out {
		out[i] = Position(i)
	}
	return out
}

// VisiblePositions returns the slots used when count overlays are active.
func VisiblePositions(count int) []Position {
	if count <= 0 {
		return []Position{}
	}
	if count >= TotalOverlayPositions {
		return AllPositions()
	}
	out := make([]Position, count)
	copy(out, PriorityOrder[:count])
	return out
}

// Valid reports whether p is an outer position or Center.
func (p Position) Valid() bool {
	return p == Center || p.IsOverlay()
}

// IsOverlay reports whether p is one of the eight outer positions.
func (p Position) IsOverlay() bool {
	return p >= 0 && p < TotalOverlayPositions
}

// Cell returns the (row, col) of p in the 3x3 grid. Center and out of range
// values map to the middle cell.
func (p Position) Cell() (row, col int) {
	if !p.IsOverlay() {
		return 1, 1
	}
	c := cells[p]
	return c.row, c.col
}

func (p Position) String() string {
	if name, ok := names.GetInverse(p); ok {
		return name
	}
	return "Position(" + strconv.Itoa(int(p)) + ")"
}

// ParsePosition accepts a slot name ("top-center") or an index ("1").
func ParsePosition(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := names.Get(s); ok {
		return p, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Position(n).IsOverlay() {
		return 0, fmt.Errorf("invalid slot position %q", s)
	}
	return Position(n), nil
}

// Names returns every slot name, outer positions first in index order.
func Names() []string {
	out := make([]string, 0, TotalOverlayPositions+1)
	for _, p := range AllPositions() {
		out = append(out, p.String())
	}
	return append(out, Center.String())
}
