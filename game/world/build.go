package world

import (
	"fmt"

	"github.com/kasuganosora/basebuild/server/catalog"
	"go.uber.org/zap"
)

const defaultBuildTime = 0.1

// buildJobTemplates turns each catalog build recipe into a job prototype.
func buildJobTemplates(cat *catalog.Catalog) map[string]*Job {
	out := make(map[string]*Job, cat.Len())
	for _, name := range cat.Names() {
		def, _ := cat.Lookup(name)
		workTime := defaultBuildTime
		var reqs []*Inventory
		if def.Build != nil {
			workTime = def.Build.WorkTime
			for _, r := range def.Build.Requires {
				reqs = append(reqs, NewInventory(r.Type, r.Amount, 0))
			}
		}
		out[name] = NewJob(nil, name, workTime, reqs)
	}
	return out
}

// EnqueueJob posts j to the queue. The job-created event fires on the first
// enqueue only; a requeued job is silent.
func (w *World) EnqueueJob(j *Job) error {
	if j == nil {
		return fmt.Errorf("world: nil job")
	}
	if j.Terminal() {
		return ErrJobFinished
	}
	if j.tile == nil || j.tile.world != w {
		return ErrNoTile
	}
	w.jobs.Enqueue(j)
	if j.announced {
		return nil
	}
	j.announced = true
	w.active = append(w.active, j)
	j.Worked.Subscribe(w.events.JobWorked.Emit)
	j.Completed.Subscribe(func(j *Job) {
		w.retire(j)
		w.events.JobCompleted.Emit(j)
	})
	j.Cancelled.Subscribe(func(j *Job) {
		w.retire(j)
		w.events.JobCancelled.Emit(j)
	})
	w.events.JobCreated.Emit(j)
	return nil
}

func (w *World) retire(j *Job) {
	for i, x := range w.active {
		if x == j {
			w.active = append(w.active[:i:i], w.active[i+1:]...)
			return
		}
	}
}

// CancelJob cancels j wherever it is: queued, claimed or attached to furniture.
func (w *World) CancelJob(j *Job) error {
	if j == nil {
		return fmt.Errorf("world: nil job")
	}
	if !j.Cancel() {
		return ErrJobFinished
	}
	return nil
}

// FindJob returns a live job by ID.
func (w *World) FindJob(id string) *Job {
	for _, j := range w.active {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Jobs returns every live job, queued or claimed, in creation order.
func (w *World) Jobs() []*Job {
	return append([]*Job(nil), w.active...)
}

// BuildFurniture posts a construction job for typ at t. The tile carries the
// job as its pending build until the job completes or is cancelled.
func (w *World) BuildFurniture(typ string, t *Tile) (*Job, error) {
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
	if t.pendingJob != nil {
		return nil, fmt.Errorf("%w: %s", ErrPendingJob, t)
	}

	j := w.jobTemplates[typ].Clone()
	j.tile = t
	t.pendingJob = j
	j.Completed.Subscribe(w.onBuildCompleted)
	j.Cancelled.Subscribe(func(j *Job) {
		if j.tile.pendingJob == j {
			j.tile.pendingJob = nil
		}
	})
	if err := w.EnqueueJob(j); err != nil {
		t.pendingJob = nil
		return nil, err
	}
	return j, nil
}

func (w *World) onBuildCompleted(j *Job) {
	t := j.tile
	if t.pendingJob == j {
		t.pendingJob = nil
	}
	if _, err := w.PlaceFurniture(j.FurnitureType, t); err != nil {
		w.logger.Error("build job completed but furniture could not be placed",
			zap.String("job_id", j.ID),
			zap.String("type", j.FurnitureType),
			zap.Stringer("tile", t),
			zap.Error(err))
	}
}
