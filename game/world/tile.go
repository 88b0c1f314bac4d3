package world

import (
	"fmt"
	"math"
)

// TileKind is the base terrain of a tile.
type TileKind int

const (
	TileEmpty TileKind = iota
	TileFloor
)

func (k TileKind) String() string {
	switch k {
	case TileEmpty:
		return "Empty"
	case TileFloor:
		return "Floor"
	default:
		return fmt.Sprintf("TileKind(%d)", int(k))
	}
}

// ParseTileKind is the inverse of TileKind.String.
func ParseTileKind(s string) (TileKind, error) {
	switch s {
	case "Empty", "empty":
		return TileEmpty, nil
	case "Floor", "floor":
		return TileFloor, nil
	}
	return TileEmpty, fmt.Errorf("unknown tile kind %q", s)
}

// Enterability is whether a character may step onto a tile right now.
type Enterability int

const (
	EnterYes Enterability = iota
	EnterNever
	EnterSoon
)

func (e Enterability) String() string {
	switch e {
	case EnterYes:
		return "Yes"
	case EnterNever:
		return "Never"
	case EnterSoon:
		return "Soon"
	}
	return "Unknown"
}

const baseMovementCost = 1.0

// Tile is one grid cell. It owns at most one furniture and one inventory stack.
type Tile struct {
	X, Y int

	world      *World
	kind       TileKind
	furniture  *Furniture
	inventory  *Inventory
	pendingJob *Job
}

func (t *Tile) Kind() TileKind { return t.kind }
func (t *Tile) Furniture() *Furniture { return t.furniture }
func (t *Tile) Inventory() *Inventory { return t.inventory }
func (t *Tile) PendingJob() *Job { return t.pendingJob }

func (t *Tile) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("(%d,%d)", t.X, t.Y)
}

// MovementCost is 0 for impassable tiles.
func (t *Tile) MovementCost() float64 {
	if t.kind == TileEmpty {
		return 0
	}
	if t.furniture == nil {
		return baseMovementCost
	}
	return baseMovementCost * t.furniture.MovementCost()
}

// setFurniture links f to the tile, or clears the link when f is nil.
// Installing over existing furniture fails. World bookkeeping (the furniture
// list, jobs, events) is the caller's job: see World.PlaceFurniture and
// World.UninstallFurniture.
func (t *Tile) setFurniture(f *Furniture) bool {
	if f == nil {
		if t.furniture != nil {
			t.furniture.tile = nil
			t.furniture = nil
			t.world.bumpGeneration()
		}
		return true
	}
	if t.furniture != nil {
		return false
	}
	f.tile = t
	t.furniture = f
	t.world.bumpGeneration()
	return true
}

// IsEnterable consults the furniture's behaviour when it has an enterability
// predicate; otherwise any tile with a positive movement cost is enterable.
func (t *Tile) IsEnterable() Enterability {
	if t.MovementCost() == 0 {
		return EnterNever
	}
	if f := t.furniture; f != nil {
		if b := f.behavior(); b.Enterable != nil {
			return b.Enterable(f)
		}
	}
	return EnterYes
}

// Neighbours returns the in-range neighbours in N E S W order, followed by
// NE SE SW NW when diagonal is set.
func (t *Tile) Neighbours(diagonal bool) []*Tile {
	offsets := neighbourOffsets[:4]
	if diagonal {
		offsets = neighbourOffsets[:]
	}
	out := make([]*Tile, 0, len(offsets))
	for _, o := range offsets {
		if n := t.world.TileAt(t.X+o[0], t.Y+o[1]); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// IsNeighbour reports whether o is adjacent to t.
func (t *Tile) IsNeighbour(o *Tile, diagonal bool) bool {
	if o == nil {
		return false
	}
	dx, dy := abs(t.X-o.X), abs(t.Y-o.Y)
	if diagonal {
		return dx <= 1 && dy <= 1 && dx+dy > 0
	}
	return dx+dy == 1
}

func (t *Tile) distance(o *Tile) float64 {
	return math.Hypot(float64(t.X-o.X), float64(t.Y-o.Y))
}

var neighbourOffsets = [8][2]int{
	{0, 1}, {1, 0}, {0, -1}, {-1, 0},
	{1, 1}, {1, -1}, {-1, -1}, {-1, 1},
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
