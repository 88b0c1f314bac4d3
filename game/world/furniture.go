package world

import (
	"sort"

	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/kasuganosora/basebuild/server/game/event"
)

// Furniture is a structure installed on a tile, cloned from a catalog prototype.
type Furniture struct {
	objectType       string
	movementCost     float64
	width, height    int
	linksToNeighbour bool
	behaviorID       string
	params           map[string]float64

	world *World
	tile  *Tile
	jobs  []*Job

	// Changed fires when the furniture's appearance or parameters change.
	Changed event.Registry[*Furniture]
}

func newFurniture(w *World, def catalog.FurnitureDef) *Furniture {
	f := &Furniture{
		objectType:       def.Type,
		movementCost:     def.MovementCost,
		width:            def.Width,
		height:           def.Height,
		linksToNeighbour: def.LinksToNeighbour,
		behaviorID:       def.Behavior,
		params:           make(map[string]float64, len(def.Params)),
		world:            w,
	}
	for k, v := range def.Params {
		f.params[k] = v
	}
	return f
}

func (f *Furniture) Type() string { return f.objectType }
func (f *Furniture) MovementCost() float64 { return f.movementCost }
func (f *Furniture) Size() (int, int) { return f.width, f.height }
func (f *Furniture) LinksToNeighbour() bool { return f.linksToNeighbour }
func (f *Furniture) BehaviorID() string { return f.behaviorID }
func (f *Furniture) Tile() *Tile { return f.tile }

// IsStockpile reports whether the furniture's behaviour marks it as storage.
func (f *Furniture) IsStockpile() bool { return f.behavior().Stockpile }

func (f *Furniture) behavior() Behavior {
	if f.world == nil || f.behaviorID == "" {
		return Behavior{}
	}
	return f.world.behaviors[f.behaviorID]
}

// Param returns a named parameter, or 0 when unset.
func (f *Furniture) Param(name string) float64 { return f.params[name] }

// Params returns a copy of every named parameter.
func (f *Furniture) Params() map[string]float64 {
	out := make(map[string]float64, len(f.params))
	for k, v := range f.params {
		out[k] = v
	}
	return out
}

// ParamNames returns the parameter names in sorted order.
func (f *Furniture) ParamNames() []string {
	names := make([]string, 0, len(f.params))
	for k := range f.params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetParameter stores v under name. Parameters never feed the walkability
// graph, which only reads movement costs; enterability is asked per step.
func (f *Furniture) SetParameter(name string, v float64) {
	f.params[name] = v
}

// ChangeParameter adds delta to a named parameter.
func (f *Furniture) ChangeParameter(name string, delta float64) {
	f.SetParameter(name, f.params[name]+delta)
}

// AddJob attaches a job to the furniture and posts it to the world queue. The
// job is detached again once it completes or is cancelled.
func (f *Furniture) AddJob(j *Job) error {
	f.jobs = append(f.jobs, j)
	var hc, hx event.Handle
	detach := func(j *Job) {
		f.RemoveJob(j)
		j.Completed.Unsubscribe(hc)
		j.Cancelled.Unsubscribe(hx)
	}
	hc = j.Completed.Subscribe(detach)
	hx = j.Cancelled.Subscribe(detach)
	if err := f.world.EnqueueJob(j); err != nil {
		detach(j)
		return err
	}
	return nil
}

// RemoveJob detaches j. It reports whether j was attached.
func (f *Furniture) RemoveJob(j *Job) bool {
	for i, x := range f.jobs {
		if x == j {
			f.jobs = append(f.jobs[:i:i], f.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// JobCount returns the number of attached jobs.
func (f *Furniture) JobCount() int { return len(f.jobs) }

func (f *Furniture) notifyChanged() {
	f.Changed.Emit(f)
	if f.world != nil {
		f.world.events.FurnitureChanged.Emit(f)
	}
}

// notifyLinkedNeighbours fires the changed event on same-type orthogonal
// neighbours so renderers can redraw connecting sprites.
func (f *Furniture) notifyLinkedNeighbours(t *Tile) {
	if !f.linksToNeighbour {
		return
	}
	for _, n := range t.Neighbours(false) {
		if nf := n.furniture; nf != nil && nf != f && nf.objectType == f.objectType {
			nf.notifyChanged()
		}
	}
}
