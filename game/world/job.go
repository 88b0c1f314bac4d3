package world

import (
	"sort"

	"github.com/google/uuid"
	"github.com/kasuganosora/basebuild/server/game/event"
	"go.uber.org/zap"
)

// JobState is the lifecycle position of a job.
type JobState int

const (
	JobPending JobState = iota
	JobClaimed
	JobCompleted
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobClaimed:
		return "claimed"
	case JobCompleted:
		return "completed"
	case JobCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Job is a unit of work at a tile: optional materials, then a work timer.
type Job struct {
	ID            string
	FurnitureType string

	// AcceptsAnyInventory lets a job with no requirements take its first
	// delivery of any type.
	AcceptsAnyInventory bool
	// CanTakeFromStockpile lets haulers source materials from stockpiles.
	CanTakeFromStockpile bool

	tile         *Tile
	workTime     float64
	requirements map[string]*Inventory
	state        JobState
	queue        *JobQueue
	announced    bool

	Worked    event.Registry[*Job]
	Completed event.Registry[*Job]
	Cancelled event.Registry[*Job]
}

// NewJob creates a pending job. Requirement stacks are copied: MaxStackSize is
// the quantity needed and StackSize the quantity already delivered.
func NewJob(t *Tile, furnitureType string, workTime float64, reqs []*Inventory) *Job {
	j := &Job{
		ID:                   uuid.NewString(),
		FurnitureType:        furnitureType,
		CanTakeFromStockpile: true,
		tile:                 t,
		workTime:             workTime,
		requirements:         make(map[string]*Inventory, len(reqs)),
	}
	for _, r := range reqs {
		j.requirements[r.Type] = r.Clone()
	}
	return j
}

// Clone returns an independent pending copy with a fresh ID and no
// subscribers. Requirement stacks are deep-copied.
func (j *Job) Clone() *Job {
	c := &Job{
		ID:                   uuid.NewString(),
		FurnitureType:        j.FurnitureType,
		AcceptsAnyInventory:  j.AcceptsAnyInventory,
		CanTakeFromStockpile: j.CanTakeFromStockpile,
		tile:                 j.tile,
		workTime:             j.workTime,
		requirements:         make(map[string]*Inventory, len(j.requirements)),
	}
	for k, r := range j.requirements {
		c.requirements[k] = r.Clone()
	}
	return c
}

func (j *Job) Tile() *Tile { return j.tile }
func (j *Job) State() JobState { return j.state }
func (j *Job) WorkTime() float64 { return j.workTime }
func (j *Job) Terminal() bool { return j.state == JobCompleted || j.state == JobCancelled }

// Requirement returns the requirement stack for typ.
func (j *Job) Requirement(typ string) (*Inventory, bool) {
	r, ok := j.requirements[typ]
	return r, ok
}

// Requirements returns the requirement stacks sorted by type.
func (j *Job) Requirements() []*Inventory {
	out := make([]*Inventory, 0, len(j.requirements))
	for _, r := range j.requirements {
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Type < out[b].Type })
	return out
}

// HasAllMaterial reports whether every requirement is fully delivered. An
// accept-any job with nothing delivered yet still needs material.
func (j *Job) HasAllMaterial() bool {
	if j.AcceptsAnyInventory && len(j.requirements) == 0 {
		return false
	}
	for _, r := range j.requirements {
		if r.StackSize < r.MaxStackSize {
			return false
		}
	}
	return true
}

// Desires returns how much of inv's type the job still wants.
func (j *Job) Desires(inv *Inventory) int {
	if inv == nil {
		return 0
	}
	if r, ok := j.requirements[inv.Type]; ok {
		return r.room()
	}
	if j.AcceptsAnyInventory && len(j.requirements) == 0 {
		return inv.MaxStackSize
	}
	return 0
}

// FirstDesired returns the first unmet requirement in type order.
func (j *Job) FirstDesired() *Inventory {
	for _, r := range j.Requirements() {
		if r.StackSize < r.MaxStackSize {
			return r
		}
	}
	return nil
}

// DoWork advances the job by dt. Without all material only the worked event
// fires. Completion fires once; terminal jobs ignore further work.
func (j *Job) DoWork(dt float64) {
	if j.Terminal() {
		return
	}
	if !j.HasAllMaterial() {
		j.emitWorked()
		return
	}
	j.workTime -= dt
	j.emitWorked()
	if j.Terminal() || j.workTime > 0 {
		return
	}
	j.complete()
}

// complete finishes the job regardless of remaining work time. Worked
// handlers use it for jobs whose effect happens on delivery.
func (j *Job) complete() bool {
	if j.Terminal() {
		return false
	}
	j.state = JobCompleted
	if j.queue != nil {
		j.queue.Remove(j)
	}
	j.Completed.Emit(j)
	return true
}

// Cancel ends the job, removing it from its queue. Delivered material goes
// back onto the job tile. It reports false when the job had already ended.
func (j *Job) Cancel() bool {
	if j.Terminal() {
		return false
	}
	j.state = JobCancelled
	if j.queue != nil {
		j.queue.Remove(j)
	}
	j.returnMaterial()
	j.Cancelled.Emit(j)
	return true
}

// returnMaterial drops delivered stacks on the job tile. Whatever the tile
// cannot hold is logged and lost. The requirements keep their counts.
func (j *Job) returnMaterial() {
	t := j.tile
	if t == nil || t.world == nil {
		return
	}
	for _, r := range j.Requirements() {
		if r.StackSize <= 0 {
			continue
		}
		drop := r.Clone()
		t.world.inventory.PlaceOnTile(t, drop)
		if drop.StackSize > 0 {
			t.world.logger.Warn("job cancelled with undeliverable material",
				zap.String("job_id", j.ID), zap.Stringer("tile", t),
				zap.String("type", drop.Type), zap.Int("lost", drop.StackSize))
		}
	}
}

func (j *Job) emitWorked() { j.Worked.Emit(j) }
