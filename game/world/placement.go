package world

import (
	"fmt"

	"github.com/kasuganosora/basebuild/server/catalog"
	"go.uber.org/zap"
)

// FurniturePrototype returns the catalog definition for typ.
func (w *World) FurniturePrototype(typ string) (catalog.FurnitureDef, bool) {
	return w.catalog.Lookup(typ)
}

func (w *World) lookupFurniture(typ string) (catalog.FurnitureDef, error) {
	def, ok := w.catalog.Lookup(typ)
	if !ok {
		if s := w.catalog.Suggest(typ); s != "" {
			return def, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownFurniture, typ, s)
		}
		return def, fmt.Errorf("%w: %q", ErrUnknownFurniture, typ)
	}
	return def, nil
}

func (w *World) validPosition(def catalog.FurnitureDef, t *Tile) bool {
	if t == nil || def.Width != 1 || def.Height != 1 {
		return false
	}
	if b, ok := w.behaviors[def.Behavior]; ok && b.ValidPosition != nil {
		return b.ValidPosition(w, def, t)
	}
	return defaultValidPosition(w, def, t)
}

// IsFurniturePlacementValid reports whether typ could be installed on t now.
func (w *World) IsFurniturePlacementValid(typ string, t *Tile) bool {
	def, ok := w.catalog.Lookup(typ)
	return ok && w.validPosition(def, t)
}

// PlaceFurniture installs a fresh instance of typ on t. Nothing changes when
// the placement is invalid. Same-type linked neighbours are told to redraw.
func (w *World) PlaceFurniture(typ string, t *Tile) (*Furniture, error) {
	def, err := w.lookupFurniture(typ)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTile
	}
	if !w.validPosition(def, t) {
		return nil, fmt.Errorf("%w: %s at %s", ErrInvalidPlacement, typ, t)
	}
	return w.install(def, t)
}

// install puts a fresh instance of def on t without the placement rule and
// runs the same bookkeeping as a normal placement.
func (w *World) install(def catalog.FurnitureDef, t *Tile) (*Furniture, error) {
	f := newFurniture(w, def)
	if !t.setFurniture(f) {
		return nil, fmt.Errorf("%w: %s", ErrTileOccupied, t)
	}
	w.furniture = append(w.furniture, f)
	f.notifyLinkedNeighbours(t)
	w.events.FurnitureCreated.Emit(f)
	return f, nil
}

// restoreFurniture reinstalls saved furniture. The tile may have changed
// kind under it since it was built, so only occupancy is checked.
func (w *World) restoreFurniture(typ string, t *Tile) (*Furniture, error) {
	def, err := w.lookupFurniture(typ)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTile
	}
	return w.install(def, t)
}

// UninstallFurniture removes the furniture on t and cancels its jobs. It
// reports false when the tile had none.
func (w *World) UninstallFurniture(t *Tile) bool {
	if t == nil || t.furniture == nil {
		return false
	}
	f := t.furniture
	for _, j := range append([]*Job(nil), f.jobs...) {
		j.Cancel()
	}
	t.setFurniture(nil)
	for i, x := range w.furniture {
		if x == f {
			w.furniture = append(w.furniture[:i:i], w.furniture[i+1:]...)
			break
		}
	}
	f.notifyLinkedNeighbours(t)
	w.events.FurnitureRemoved.Emit(f)
	w.logger.Debug("furniture uninstalled", zap.String("type", f.objectType), zap.Stringer("tile", t))
	return true
}
