package world

import (
	"github.com/google/uuid"
	"github.com/kasuganosora/basebuild/server/game/ai"
	"github.com/kasuganosora/basebuild/server/game/event"
	"go.uber.org/zap"
)

// Character is an agent that claims jobs, hauls their materials and works them.
type Character struct {
	ID string

	world    *World
	curr     *Tile
	dest     *Tile
	next     *Tile
	progress float64
	speed    float64

	job        *Job
	jobEnded   bool
	hCompleted event.Handle
	hCancelled event.Handle
	path       *ai.Path
	pathDest   *Tile
	inventory  *Inventory

	Changed event.Registry[*Character]
}

func newCharacter(w *World, t *Tile) *Character {
	return &Character{
		ID:    uuid.NewString(),
		world: w,
		curr:  t,
		dest:  t,
		next:  t,
		speed: w.speed,
	}
}

func (c *Character) CurrentTile() *Tile { return c.curr }
func (c *Character) Destination() *Tile { return c.dest }
func (c *Character) NextTile() *Tile { return c.next }
func (c *Character) Progress() float64 { return c.progress }
func (c *Character) Speed() float64 { return c.speed }
func (c *Character) Job() *Job { return c.job }
func (c *Character) Inventory() *Inventory { return c.inventory }

// Position interpolates between the current tile and the next hop.
func (c *Character) Position() (float64, float64) {
	to := c.next
	if to == nil {
		to = c.curr
	}
	x := float64(c.curr.X) + (float64(to.X)-float64(c.curr.X))*c.progress
	y := float64(c.curr.Y) + (float64(to.Y)-float64(c.curr.Y))*c.progress
	return x, y
}

// SetSpeed changes the movement speed in tiles per second.
func (c *Character) SetSpeed(v float64) {
	if v > 0 {
		c.speed = v
	}
}

// Update runs one tick of the task loop: drop a job that ended since the last
// tick, pick up or progress a job, then move.
func (c *Character) Update(dt float64) {
	before := c.state()
	if c.jobEnded {
		c.releaseJob()
	}
	c.updateJob(dt)
	c.updateMovement(dt)
	if c.state() != before {
		c.Changed.Emit(c)
		c.world.events.CharacterChanged.Emit(c)
	}
}

type characterState struct {
	curr, next *Tile
	progress   float64
	job        *Job
	carried    int
}

func (c *Character) state() characterState {
	s := characterState{curr: c.curr, next: c.next, progress: c.progress, job: c.job}
	if c.inventory != nil {
		s.carried = c.inventory.StackSize
	}
	return s
}

func (c *Character) updateJob(dt float64) {
	if c.job == nil {
		c.claimJob()
		if c.job == nil {
			c.dest = c.curr
			return
		}
	}
	j := c.job
	if !j.HasAllMaterial() {
		c.gatherMaterial(j)
		return
	}
	c.dest = j.tile
	if c.curr == j.tile {
		j.DoWork(dt)
	}
}

func (c *Character) claimJob() {
	j := c.world.jobs.Dequeue()
	if j == nil {
		return
	}
	c.job = j
	c.jobEnded = false
	c.dest = j.tile
	c.hCompleted = j.Completed.Subscribe(c.onJobEnded)
	c.hCancelled = j.Cancelled.Subscribe(c.onJobEnded)
}

// onJobEnded only flags the job; the reference is dropped at the start of the
// next tick.
func (c *Character) onJobEnded(j *Job) {
	if j != c.job {
		c.world.logger.Error("character notified about a job it does not own",
			zap.String("character_id", c.ID), zap.String("job_id", j.ID))
		return
	}
	c.jobEnded = true
}

func (c *Character) releaseJob() {
	if c.job != nil {
		c.job.Completed.Unsubscribe(c.hCompleted)
		c.job.Cancelled.Unsubscribe(c.hCancelled)
	}
	c.job = nil
	c.jobEnded = false
	c.hCompleted, c.hCancelled = 0, 0
	c.dest = c.curr
	c.path = nil
}

// abandonJob puts the job back on the queue for someone else.
func (c *Character) abandonJob(reason string) {
	j := c.job
	c.releaseJob()
	c.next = c.curr
	c.progress = 0
	if j == nil {
		return
	}
	c.world.logger.Info("character abandoned job",
		zap.String("character_id", c.ID),
		zap.String("job_id", j.ID),
		zap.Stringer("tile", c.curr),
		zap.String("reason", reason))
	if err := c.world.EnqueueJob(j); err != nil {
		c.world.logger.Debug("abandoned job not requeued", zap.String("job_id", j.ID), zap.Error(err))
	}
}

// gatherMaterial does one step of fetching what j still needs: deliver what
// is carried, drop what is not wanted, pick up from the current tile, or head
// for a source.
func (c *Character) gatherMaterial(j *Job) {
	im := c.world.inventory
	if c.inventory != nil {
		if j.Desires(c.inventory) > 0 {
			if c.curr == j.tile {
				im.PlaceInJob(j, c.inventory)
			} else {
				c.dest = j.tile
			}
			return
		}
		if !c.dropInventory() {
			c.abandonJob("cannot drop unwanted inventory")
		}
		return
	}

	if here := c.curr.inventory; here != nil && sourceAllowed(c.curr, j.CanTakeFromStockpile) && j.Desires(here) > 0 {
		im.PlaceOnCharacter(c, here, j.Desires(here))
		return
	}

	var src *Inventory
	if want := j.FirstDesired(); want != nil {
		src = im.ClosestOfType(want.Type, c.curr, want.room(), j.CanTakeFromStockpile)
	} else if j.AcceptsAnyInventory {
		src = im.FirstAvailable(j.CanTakeFromStockpile)
	}
	if src == nil {
		c.abandonJob("no source for required inventory")
		return
	}
	c.dest = src.tile
}

// dropInventory leaves the carried stack on the current tile, or on the first
// neighbour that can take it.
func (c *Character) dropInventory() bool {
	im := c.world.inventory
	if im.PlaceOnTile(c.curr, c.inventory) && c.inventory == nil {
		return true
	}
	for _, n := range c.curr.Neighbours(c.world.diagonal) {
		if c.inventory == nil {
			return true
		}
		if n.MovementCost() > 0 {
			im.PlaceOnTile(n, c.inventory)
		}
	}
	return c.inventory == nil
}

func (c *Character) updateMovement(dt float64) {
	if c.curr == c.dest {
		c.path = nil
		c.next = c.curr
		c.progress = 0
		return
	}

	if c.next == nil || c.next == c.curr {
		if c.path == nil || c.path.Len() == 0 || c.pathDest != c.dest {
			c.path = c.world.FindPath(c.curr, c.dest)
			c.pathDest = c.dest
			if c.path.Len() == 0 {
				c.path = nil
				c.abandonJob("no path to destination")
				return
			}
		}
		pt, _ := c.path.Dequeue()
		c.next = c.world.TileAt(pt.X, pt.Y)
	}

	switch c.next.IsEnterable() {
	case EnterNever:
		// The map changed under us; repath on the next tick.
		c.next = c.curr
		c.path = nil
		c.progress = 0
		return
	case EnterSoon:
		return
	}

	dist := c.curr.distance(c.next)
	c.progress += c.speed * dt / dist
	if c.progress >= 1 {
		c.curr = c.next
		c.progress = 0
	}
}
