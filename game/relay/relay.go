// Package relay forwards world change events to a pub/sub channel as JSON so
// stream clients (SSE, websocket, other processes) can follow the colony.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/basebuild/server/game/event"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"go.uber.org/zap"
)

// Event types carried in Envelope.Type.
const (
	TypeWorldReset       = "world_reset"
	TypeTileChanged      = "tile_changed"
	TypeFurnitureCreated = "furniture_created"
	TypeFurnitureChanged = "furniture_changed"
	TypeFurnitureRemoved = "furniture_removed"
	TypeCharacterCreated = "character_created"
	TypeCharacterChanged = "character_changed"
	TypeInventoryCreated = "inventory_created"
	TypeJobCreated       = "job_created"
	TypeJobWorked        = "job_worked"
	TypeJobCompleted     = "job_completed"
	TypeJobCancelled     = "job_cancelled"
)

// Envelope is the wire shape of one event.
type Envelope struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	Data any    `json:"data,omitempty"`
}

type worldSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Relay serialises events on the simulation goroutine and publishes them from
// its own worker, so a slow broker never stalls a tick.
type Relay struct {
	ps      pubsub.PubSub
	channel string
	logger  *zap.Logger

	mu     sync.Mutex
	queue  chan []byte
	closed bool
	unsub  map[*world.World][]func()
	done   chan struct{}

	// SkipWorked drops job_worked events, which fire every tick a job is worked.
	SkipWorked bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New starts a relay publishing on channel with a queue of bufSize messages.
func New(ps pubsub.PubSub, channel string, bufSize int, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = pubsub.EventsChannel
	}
	if bufSize <= 0 {
		bufSize = 1024
	}
	r := &Relay{
		ps:      ps,
		channel: channel,
		logger:  logger,
		queue:   make(chan []byte, bufSize),
		unsub:   make(map[*world.World][]func()),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Relay) run() {
	defer close(r.done)
	for msg := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := r.ps.Publish(ctx, r.channel, string(msg))
		cancel()
		if err != nil {
			r.logger.Warn("relay publish failed", zap.String("channel", r.channel), zap.Error(err))
			continue
		}
		r.published.Add(1)
	}
}

// Close stops accepting events, drains the queue and waits for the worker.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	for w, fns := range r.unsub {
		for _, fn := range fns {
			fn()
		}
		delete(r.unsub, w)
	}
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

// Published and Dropped count messages since the relay started.
func (r *Relay) Published() uint64 { return r.published.Load() }
func (r *Relay) Dropped() uint64 { return r.dropped.Load() }

func (r *Relay) send(typ string, tick uint64, data any) {
	b, err := json.Marshal(Envelope{Type: typ, Tick: tick, Data: data})
	if err != nil {
		r.logger.Error("relay marshal failed", zap.String("type", typ), zap.Error(err))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- b:
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("relay queue full, dropping events", zap.Uint64("dropped", r.dropped.Load()))
		}
	}
}

func watch[T any](r *Relay, w *world.World, reg *event.Registry[T], typ string, view func(T) any) func() {
	h := reg.Subscribe(func(v T) { r.send(typ, w.Tick(), view(v)) })
	return func() { reg.Unsubscribe(h) }
}

// Attach subscribes to every world event and announces the world with a
// world_reset event so clients refetch their state.
func (r *Relay) Attach(w *world.World) {
	ev := w.Events()
	tile := func(t *world.Tile) any { return t.View() }
	furn := func(f *world.Furniture) any { return f.View() }
	char := func(c *world.Character) any { return c.View() }
	job := func(j *world.Job) any { return j.View() }

	fns := []func(){
		watch(r, w, &ev.TileChanged, TypeTileChanged, tile),
		watch(r, w, &ev.FurnitureCreated, TypeFurnitureCreated, furn),
		watch(r, w, &ev.FurnitureChanged, TypeFurnitureChanged, furn),
		watch(r, w, &ev.FurnitureRemoved, TypeFurnitureRemoved, furn),
		watch(r, w, &ev.CharacterCreated, TypeCharacterCreated, char),
		watch(r, w, &ev.CharacterChanged, TypeCharacterChanged, char),
		watch(r, w, &ev.InventoryCreated, TypeInventoryCreated, func(i *world.Inventory) any { return i.View() }),
		watch(r, w, &ev.JobCreated, TypeJobCreated, job),
		watch(r, w, &ev.JobCompleted, TypeJobCompleted, job),
		watch(r, w, &ev.JobCancelled, TypeJobCancelled, job),
	}
	if !r.SkipWorked {
		fns = append(fns, watch(r, w, &ev.JobWorked, TypeJobWorked, job))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
		return
	}
	r.unsub[w] = append(r.unsub[w], fns...)
	r.mu.Unlock()

	width, height := w.Dimensions()
	r.send(TypeWorldReset, w.Tick(), worldSize{Width: width, Height: height})
}

// Detach drops every subscription made on w.
func (r *Relay) Detach(w *world.World) {
	r.mu.Lock()
	fns := r.unsub[w]
	delete(r.unsub, w)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
