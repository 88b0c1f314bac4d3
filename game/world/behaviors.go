package world

import (
	"math"

	"github.com/kasuganosora/basebuild/server/catalog"
	"go.uber.org/zap"
)

// Behavior is the per-type capability set of a furniture prototype. Nil
// funcs fall back to the defaults.
type Behavior struct {
	// ValidPosition overrides the default placement check (Floor, no furniture).
	ValidPosition func(w *World, def catalog.FurnitureDef, t *Tile) bool
	// Enterable overrides enterability for walkable tiles holding the furniture.
	Enterable func(f *Furniture) Enterability
	// Update runs once per tick.
	Update func(f *Furniture, dt float64)
	// Stockpile marks storage furniture; haulers skip it unless a job allows it.
	Stockpile bool
}

const (
	BehaviorDoor      = "door"
	BehaviorStockpile = "stockpile"
)

const defaultDoorSpeed = 4.0

func builtinBehaviors() map[string]Behavior {
	return map[string]Behavior{
		BehaviorDoor: {
			Enterable: doorEnterable,
			Update:    doorUpdate,
		},
		BehaviorStockpile: {
			Update:    stockpileUpdate,
			Stockpile: true,
		},
	}
}

func defaultValidPosition(_ *World, _ catalog.FurnitureDef, t *Tile) bool {
	return t.kind == TileFloor && t.furniture == nil
}

// doorEnterable asks the door to open; it is only passable once fully open.
func doorEnterable(f *Furniture) Enterability {
	f.SetParameter("is_opening", 1)
	if f.Param("openness") >= 1 {
		return EnterYes
	}
	return EnterSoon
}

func doorUpdate(f *Furniture, dt float64) {
	speed := f.Param("open_speed")
	if speed <= 0 {
		speed = defaultDoorSpeed
	}
	before, wasOpening := f.Param("openness"), f.Param("is_opening")

	openness := before
	if wasOpening >= 1 {
		openness += dt * speed
		if openness >= 1 {
			f.SetParameter("is_opening", 0)
		}
	} else {
		openness -= dt * speed
	}
	f.SetParameter("openness", math.Max(0, math.Min(1, openness)))

	if f.Param("openness") != before || f.Param("is_opening") != wasOpening {
		f.notifyChanged()
	}
}

// stockpileUpdate keeps one hauling job posted while the stockpile has room.
// An empty stockpile accepts any type; a partial one only tops up its own type.
func stockpileUpdate(f *Furniture, _ float64) {
	if f.tile == nil || f.JobCount() > 0 {
		return
	}
	w := f.world
	var j *Job
	switch inv := f.tile.inventory; {
	case inv == nil:
		j = NewJob(f.tile, "", 0, nil)
		j.AcceptsAnyInventory = true
	case inv.StackSize < inv.MaxStackSize:
		want := inv.Clone()
		want.MaxStackSize -= want.StackSize
		want.StackSize = 0
		j = NewJob(f.tile, "", 0, []*Inventory{want})
	default:
		return
	}
	j.CanTakeFromStockpile = false
	j.Worked.Subscribe(stockpileJobWorked)
	if err := f.AddJob(j); err != nil {
		w.logger.Error("stockpile: posting haul job", zap.Stringer("tile", f.tile), zap.Error(err))
	}
}

// stockpileJobWorked moves a delivery onto the stockpile tile and completes the
// haul job so the next tick can post a fresh one sized to the new contents.
func stockpileJobWorked(j *Job) {
	t := j.tile
	f := t.furniture
	if f == nil || !f.IsStockpile() {
		t.world.logger.Error("stockpile: haul job worked on a tile without a stockpile", zap.Stringer("tile", t))
		return
	}
	for _, req := range j.requirements {
		if req.StackSize <= 0 {
			continue
		}
		f.RemoveJob(j)
		if !t.world.inventory.PlaceOnTile(t, req) {
			t.world.logger.Error("stockpile: delivered stack does not fit",
				zap.Stringer("tile", t), zap.String("type", req.Type))
		}
		j.complete()
		return
	}
}
