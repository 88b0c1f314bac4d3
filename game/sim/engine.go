// Package sim drives a world: one tick at a time, with HTTP commands and
// queries serialised between ticks.
package sim

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/kasuganosora/basebuild/server/game/world"
	"go.uber.org/zap"
)

// MaxStep caps a single tick so a stalled process does not teleport
// characters across the map when it resumes.
const MaxStep = 250 * time.Millisecond

// Observer is attached to the current world and moved across on Swap.
type Observer interface {
	Attach(w *world.World)
	Detach(w *world.World)
}

// Stats is a point-in-time view of the engine for the admin endpoint.
type Stats struct {
	Tick        uint64        `json:"tick"`
	Steps       uint64        `json:"steps"`
	Panics      uint64        `json:"panics"`
	Swaps       uint64        `json:"swaps"`
	LastStep    time.Duration `json:"last_step"`
	Paused      bool          `json:"paused"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Generation  uint64        `json:"generation"`
	GraphBuilds int           `json:"graph_builds"`
	Characters  int           `json:"characters"`
	Furniture   int           `json:"furniture"`
	QueuedJobs  int           `json:"queued_jobs"`
	ActiveJobs  int           `json:"active_jobs"`
}

// Engine owns a world. The world itself is not goroutine safe; every access
// goes through Step, Do or Swap.
type Engine struct {
	mu        sync.Mutex
	world     *world.World
	observers []Observer
	paused    bool

	steps, panics, swaps uint64
	lastStep             time.Duration

	logger *zap.Logger
}

// New wraps w.
func New(w *world.World, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{world: w, logger: logger}
}

// Observe attaches o to the current world and to every world swapped in later.
func (e *Engine) Observe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
	o.Attach(e.world)
}

// Step advances the world by dt. A panic escaping the world is logged and the
// engine keeps running.
func (e *Engine) Step(dt time.Duration) {
	if dt > MaxStep {
		dt = MaxStep
	}
	if dt <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	start := time.Now()
	defer func() {
		e.lastStep = time.Since(start)
		if r := recover(); r != nil {
			e.panics++
			e.logger.Error("world tick panicked",
				zap.Uint64("tick", e.world.Tick()),
				zap.Any("recover", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	e.steps++
	e.world.Update(dt.Seconds())
}

// Do runs fn against the world between ticks.
func (e *Engine) Do(fn func(w *world.World) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("world command panicked",
				zap.Any("recover", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("sim: command panicked: %v", r)
		}
	}()
	return fn(e.world)
}

// Swap replaces the world, typically after a snapshot load. Observers are
// detached from the old world and attached to the new one.
func (e *Engine) Swap(w *world.World) *world.World {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.world
	for _, o := range e.observers {
		o.Detach(old)
	}
	e.world = w
	for _, o := range e.observers {
		o.Attach(w)
	}
	e.swaps++
	e.logger.Info("world swapped", zap.Uint64("tick", w.Tick()))
	return old
}

// SetPaused stops or resumes ticking. Commands still run while paused.
func (e *Engine) SetPaused(p bool) {
	e.mu.Lock()
	e.paused = p
	e.mu.Unlock()
}

// Stats reads the counters and the world's size.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.world
	width, height := w.Dimensions()
	return Stats{
		Tick:        w.Tick(),
		Steps:       e.steps,
		Panics:      e.panics,
		Swaps:       e.swaps,
		LastStep:    e.lastStep,
		Paused:      e.paused,
		Width:       width,
		Height:      height,
		Generation:  w.Generation(),
		GraphBuilds: w.GraphBuilds(),
		Characters:  len(w.Characters()),
		Furniture:   len(w.Furniture()),
		QueuedJobs:  w.Queue().Len(),
		ActiveJobs:  len(w.Jobs()),
	}
}
