package layout

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrTooManyOverlays is returned when more overlays than slots are assigned.
	ErrTooManyOverlays = errors.New("too many overlays")
	// ErrPositionNotVisible is returned when a position is outside the visible set.
	ErrPositionNotVisible = errors.New("position not visible for current overlay count")
)

// Item is one overlay placed at a position.
type Item struct {
	ID       string
	Position Position
}

// GridAssignment maps overlay ids to positions. Assigned positions are always a
// subset of VisiblePositions(len) and no position is used twice.
type GridAssignment struct {
	mu    sync.RWMutex
	items []Item
}

// NewGridAssignment creates an assignment with overlays placed in visible-position order.
func NewGridAssignment(ids ...string) (*GridAssignment, error) {
	g := &GridAssignment{}
	if err := g.SetOverlays(ids); err != nil {
		return nil, err
	}
	return g, nil
}

// FromProject rebuilds an assignment from a stored (overlayIds, positions) pair.
func FromProject(ids []string, positions []int) (*GridAssignment, error) {
	if len(ids) != len(positions) {
		return nil, fmt.Errorf("overlay ids and positions differ in length: %d != %d", len(ids), len(positions))
	}
	items := make([]Item, len(ids))
	for i := range ids {
		items[i] = Item{ID: ids[i], Position: Position(positions[i])}
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	return &GridAssignment{items: items}, nil
}

// SetOverlays replaces the assignment, placing ids in visible-position order.
func (g *GridAssignment) SetOverlays(ids []string) error {
	if len(ids) > TotalOverlayPositions {
		return fmt.Errorf("%w: %d > %d", ErrTooManyOverlays, len(ids), TotalOverlayPositions)
	}
	positions := VisiblePositions(len(ids))
	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = Item{ID: id, Position: positions[i]}
	}

	g.mu.Lock()
	g.items = items
	g.mu.Unlock()
	return nil
}

// Items returns a copy of the assignment in insertion order.
func (g *GridAssignment) Items() []Item {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Item, len(g.items))
	copy(out, g.items)
	return out
}

// Len returns the number of assigned overlays.
func (g *GridAssignment) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.items)
}

// At returns the overlay at position.
func (g *GridAssignment) At(position Position) (Item, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, it := range g.items {
		if it.Position == position {
			return it, true
		}
	}
	return Item{}, false
}

// Swap exchanges the overlays at a and b in one step. Swapping with an empty
// visible position moves the overlay there.
func (g *GridAssignment) Swap(a, b Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	visible := VisiblePositions(len(g.items))
	if !contains(visible, a) || !contains(visible, b) {
		return ErrPositionNotVisible
	}
	for i := range g.items {
		switch g.items[i].Position {
		case a:
			g.items[i].Position = b
		case b:
			g.items[i].Position = a
		}
	}
	return nil
}

// Move relocates the overlay at from to to. An occupied target swaps.
func (g *GridAssignment) Move(from, to Position) error {
	return g.Swap(from, to)
}

// Clear removes every overlay.
func (g *GridAssignment) Clear() {
	g.mu.Lock()
	g.items = nil
	g.mu.Unlock()
}

// VisiblePositions returns the visible positions for the current overlay count.
func (g *GridAssignment) VisiblePositions() []Position {
	return VisiblePositions(g.Len())
}

// OverlayIDs and Positions return the stored project tuple; index i of one
// corresponds to index i of the other.
func (g *GridAssignment) OverlayIDs() []string {
	items := g.Items()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func (g *GridAssignment) Positions() []int {
	items := g.Items()
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = int(it.Position)
	}
	return out
}

// Validate checks the assignment invariants.
func (g *GridAssignment) Validate() error {
	return validateItems(g.Items())
}

func validateItems(items []Item) error {
	if len(items) > TotalOverlayPositions {
		return fmt.Errorf("%w: %d > %d", ErrTooManyOverlays, len(items), TotalOverlayPositions)
	}
	visible := VisiblePositions(len(items))
	seen := make(map[Position]string, len(items))
	for _, it := range items {
		if !contains(visible, it.Position) {
			return fmt.Errorf("%w: %s", ErrPositionNotVisible, it.Position)
		}
		if other, dup := seen[it.Position]; dup {
			return fmt.Errorf("position %s assigned to both %q and %q", it.Position, other, it.ID)
		}
		seen[it.Position] = it.ID
	}
	return nil
}

func contains(ps []Position, p Position) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}
