package world

import (
	"fmt"

	"github.com/kasuganosora/basebuild/server/catalog"
	"go.uber.org/zap"
)

// SnapshotVersion is the current snapshot layout.
const SnapshotVersion = 1

// Snapshot is the serialisable state of a world. Jobs are not saved; furniture
// behaviours post their recurring jobs again after a load.
type Snapshot struct {
	Version     int              `json:"version"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Tick        uint64           `json:"tick"`
	Tiles       []TileState      `json:"tiles"`
	Furniture   []FurnitureState `json:"furniture"`
	Inventories []InventoryState `json:"inventories"`
	Characters  []CharacterState `json:"characters"`
}

type TileState struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind"`
}

type FurnitureState struct {
	X      int                `json:"x"`
	Y      int                `json:"y"`
	Type   string             `json:"type"`
	Params map[string]float64 `json:"params,omitempty"`
}

type InventoryState struct {
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Type         string `json:"type"`
	StackSize    int    `json:"stack_size"`
	MaxStackSize int    `json:"max_stack_size"`
}

type CharacterState struct {
	ID        string          `json:"id"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Speed     float64         `json:"speed"`
	Inventory *InventoryState `json:"inventory,omitempty"`
}

// Snapshot captures the world's persistent state.
func (w *World) Snapshot() *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		Width:   w.width,
		Height:  w.height,
		Tick:    w.tick,
		Tiles:   make([]TileState, 0, len(w.tiles)),
	}
	for _, t := range w.tiles {
		s.Tiles = append(s.Tiles, TileState{X: t.X, Y: t.Y, Kind: t.kind.String()})
		if inv := t.inventory; inv != nil {
			s.Inventories = append(s.Inventories, InventoryState{
				X: t.X, Y: t.Y, Type: inv.Type, StackSize: inv.StackSize, MaxStackSize: inv.MaxStackSize,
			})
		}
	}
	for _, f := range w.furniture {
		fs := FurnitureState{X: f.tile.X, Y: f.tile.Y, Type: f.objectType}
		if len(f.params) > 0 {
			fs.Params = f.Params()
		}
		s.Furniture = append(s.Furniture, fs)
	}
	for _, c := range w.characters {
		cs := CharacterState{ID: c.ID, X: c.curr.X, Y: c.curr.Y, Speed: c.speed}
		if inv := c.inventory; inv != nil {
			cs.Inventory = &InventoryState{Type: inv.Type, StackSize: inv.StackSize, MaxStackSize: inv.MaxStackSize}
		}
		s.Characters = append(s.Characters, cs)
	}
	return s
}

// FromSnapshot rebuilds a world. The grid is sized first, tile kinds are
// applied, then furniture is reinstalled with the same link notifications
// and behaviour attachment as a fresh placement, minus the placement rule.
func FromSnapshot(s *Snapshot, opts Options, cat *catalog.Catalog, logger *zap.Logger) (*World, error) {
	if s == nil {
		return nil, fmt.Errorf("world: nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	opts.Width, opts.Height = s.Width, s.Height
	opts.StartFloor, opts.StartCharacters = 0, 0
	w, err := New(opts, cat, logger)
	if err != nil {
		return nil, err
	}
	w.tick = s.Tick

	for _, ts := range s.Tiles {
		t := w.TileAt(ts.X, ts.Y)
		if t == nil {
			return nil, fmt.Errorf("snapshot tile (%d,%d): %w", ts.X, ts.Y, ErrNoTile)
		}
		kind, err := ParseTileKind(ts.Kind)
		if err != nil {
			return nil, fmt.Errorf("snapshot tile (%d,%d): %w", ts.X, ts.Y, err)
		}
		w.SetTileKind(t, kind)
	}
	for _, fs := range s.Furniture {
		f, err := w.restoreFurniture(fs.Type, w.TileAt(fs.X, fs.Y))
		if err != nil {
			return nil, fmt.Errorf("snapshot furniture (%d,%d): %w", fs.X, fs.Y, err)
		}
		for k, v := range fs.Params {
			f.SetParameter(k, v)
		}
	}
	for _, is := range s.Inventories {
		if err := w.SpawnInventory(w.TileAt(is.X, is.Y), is.Type, is.MaxStackSize, is.StackSize); err != nil {
			return nil, fmt.Errorf("snapshot inventory (%d,%d): %w", is.X, is.Y, err)
		}
	}
	for _, cs := range s.Characters {
		c, err := w.CreateCharacter(w.TileAt(cs.X, cs.Y))
		if err != nil {
			return nil, fmt.Errorf("snapshot character %s: %w", cs.ID, err)
		}
		if cs.ID != "" {
			c.ID = cs.ID
		}
		c.SetSpeed(cs.Speed)
		if is := cs.Inventory; is != nil && is.StackSize > 0 {
			w.inventory.PlaceOnCharacter(c, NewInventory(is.Type, is.MaxStackSize, is.StackSize), -1)
		}
	}
	return w, nil
}
