// Package world is the colony model: the tile grid, furniture, the inventory
// ledger, the job queue and the characters working it. A World is not safe for
// concurrent use; callers serialise access (see game/sim).
package world

import (
	"fmt"
	"runtime/debug"

	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/kasuganosora/basebuild/server/game/ai"
	"github.com/kasuganosora/basebuild/server/game/event"
	"go.uber.org/zap"
)

// Options sizes and seeds a new world.
type Options struct {
	Width, Height int
	// Diagonal enables 8-connected movement.
	Diagonal bool
	// CharacterSpeed is in tiles per second.
	CharacterSpeed float64
	// StartFloor lays a square of floor of this radius around the centre.
	StartFloor int
	// StartCharacters are spawned on the centre tile.
	StartCharacters int
}

const defaultCharacterSpeed = 5.0

// Events are the world-level change notifications.
type Events struct {
	TileChanged      event.Registry[*Tile]
	FurnitureCreated event.Registry[*Furniture]
	FurnitureChanged event.Registry[*Furniture]
	FurnitureRemoved event.Registry[*Furniture]
	CharacterCreated event.Registry[*Character]
	CharacterChanged event.Registry[*Character]
	InventoryCreated event.Registry[*Inventory]
	JobCreated       event.Registry[*Job]
	JobWorked        event.Registry[*Job]
	JobCompleted     event.Registry[*Job]
	JobCancelled     event.Registry[*Job]
}

// World owns every tile, furniture, stack, job and character.
type World struct {
	width, height int
	tiles         []*Tile
	catalog       *catalog.Catalog
	behaviors     map[string]Behavior
	jobTemplates  map[string]*Job

	furniture  []*Furniture
	characters []*Character
	inventory  *InventoryManager
	jobs       *JobQueue
	active     []*Job

	diagonal bool
	speed    float64
	tick     uint64

	generation  uint64
	graph       *ai.TileGraph
	graphGen    uint64
	graphBuilds int

	events Events
	logger *zap.Logger
}

// New builds a world of Empty tiles, then applies the starting layout.
func New(opts Options, cat *catalog.Catalog, logger *zap.Logger) (*World, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("world: invalid size %dx%d", opts.Width, opts.Height)
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CharacterSpeed <= 0 {
		opts.CharacterSpeed = defaultCharacterSpeed
	}

	w := &World{
		width:     opts.Width,
		height:    opts.Height,
		tiles:     make([]*Tile, opts.Width*opts.Height),
		catalog:   cat,
		behaviors: builtinBehaviors(),
		jobs:      &JobQueue{},
		diagonal:  opts.Diagonal,
		speed:     opts.CharacterSpeed,
		logger:    logger,
	}
	w.inventory = newInventoryManager(w, logger)
	for y := 0; y < w.height; y++ {
		for x := 0; x < w.width; x++ {
			w.tiles[y*w.width+x] = &Tile{X: x, Y: y, world: w}
		}
	}
	w.jobTemplates = buildJobTemplates(cat)

	if opts.StartFloor > 0 {
		cx, cy := w.width/2, w.height/2
		for y := cy - opts.StartFloor; y <= cy+opts.StartFloor; y++ {
			for x := cx - opts.StartFloor; x <= cx+opts.StartFloor; x++ {
				if t := w.TileAt(x, y); t != nil {
					w.SetTileKind(t, TileFloor)
				}
			}
		}
	}
	for i := 0; i < opts.StartCharacters; i++ {
		if _, err := w.CreateCharacter(w.TileAt(w.width/2, w.height/2)); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Events returns the world's observer registries.
func (w *World) Events() *Events { return &w.events }

func (w *World) Logger() *zap.Logger { return w.logger }
func (w *World) Catalog() *catalog.Catalog { return w.catalog }
func (w *World) Inventory() *InventoryManager { return w.inventory }
func (w *World) Queue() *JobQueue { return w.jobs }
func (w *World) Tick() uint64 { return w.tick }
func (w *World) Diagonal() bool { return w.diagonal }

// Width, Height and MovementCost make the world an ai.Grid.
func (w *World) Width() int { return w.width }
func (w *World) Height() int { return w.height }

func (w *World) MovementCost(x, y int) float64 {
	if t := w.TileAt(x, y); t != nil {
		return t.MovementCost()
	}
	return 0
}

// Dimensions returns the grid size.
func (w *World) Dimensions() (int, int) { return w.width, w.height }

// TileAt returns nil for coordinates outside the grid.
func (w *World) TileAt(x, y int) *Tile {
	if x < 0 || x >= w.width || y < 0 || y >= w.height {
		return nil
	}
	return w.tiles[y*w.width+x]
}

// SetTileKind changes a tile's terrain. The changed event fires only when the
// kind actually differs. Emptying a tile uninstalls its furniture first.
func (w *World) SetTileKind(t *Tile, kind TileKind) {
	if t == nil || t.kind == kind {
		return
	}
	if kind == TileEmpty && t.furniture != nil {
		w.UninstallFurniture(t)
	}
	t.kind = kind
	w.bumpGeneration()
	w.events.TileChanged.Emit(t)
}

// Generation increments on every change that can affect walkability.
func (w *World) Generation() uint64 { return w.generation }

func (w *World) bumpGeneration() { w.generation++ }

// GraphBuilds counts walkability graph rebuilds.
func (w *World) GraphBuilds() int { return w.graphBuilds }

func (w *World) tileGraph() *ai.TileGraph {
	if w.graph == nil || w.graphGen != w.generation {
		w.graph = ai.NewTileGraph(w, w.diagonal)
		w.graphGen = w.generation
		w.graphBuilds++
		w.logger.Debug("walkability graph rebuilt",
			zap.Uint64("generation", w.generation),
			zap.Int("nodes", w.graph.NodeCount()),
			zap.Int("edges", w.graph.EdgeCount()))
	}
	return w.graph
}

// FindPath returns the cheapest route from one tile to another, excluding the
// start. The path is empty when no route exists. A character standing on an
// impassable tile (a wall just built under it) may step off onto any walkable
// neighbour first.
func (w *World) FindPath(from, to *Tile) *ai.Path {
	if from == nil || to == nil || from == to {
		return &ai.Path{}
	}
	g := w.tileGraph()
	src, dst := ai.Point{X: from.X, Y: from.Y}, ai.Point{X: to.X, Y: to.Y}
	if g.Walkable(from.X, from.Y) {
		return g.Find(src, dst)
	}

	var best *ai.Path
	for _, n := range from.Neighbours(w.diagonal) {
		if !g.Walkable(n.X, n.Y) {
			continue
		}
		hop := ai.Point{X: n.X, Y: n.Y}
		var p *ai.Path
		if hop == dst {
			p = ai.NewPath([]ai.Point{hop}, n.MovementCost())
		} else {
			rest := g.Find(hop, dst)
			if rest.Len() == 0 {
				continue
			}
			p = ai.NewPath(append([]ai.Point{hop}, rest.Points()...), n.MovementCost()+rest.Cost())
		}
		if best == nil || p.Cost() < best.Cost() {
			best = p
		}
	}
	if best == nil {
		return &ai.Path{}
	}
	return best
}

// Furniture returns installed furniture in placement order.
func (w *World) Furniture() []*Furniture {
	return append([]*Furniture(nil), w.furniture...)
}

// Characters returns the characters in update order.
func (w *World) Characters() []*Character {
	return append([]*Character(nil), w.characters...)
}

// Character looks a character up by ID.
func (w *World) Character(id string) *Character {
	for _, c := range w.characters {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CreateCharacter spawns a character on t.
func (w *World) CreateCharacter(t *Tile) (*Character, error) {
	if t == nil {
		return nil, ErrNoTile
	}
	c := newCharacter(w, t)
	w.characters = append(w.characters, c)
	w.events.CharacterCreated.Emit(c)
	return c, nil
}

// SpawnInventory drops a new stack on t, merging with a stack of the same type.
func (w *World) SpawnInventory(t *Tile, typ string, maxStack, size int) error {
	if t == nil {
		return ErrNoTile
	}
	if typ == "" || maxStack <= 0 || size <= 0 || size > maxStack {
		return fmt.Errorf("world: invalid stack %q %d/%d", typ, size, maxStack)
	}
	if inv := t.inventory; inv != nil && inv.Type == typ && inv.room() < size {
		return fmt.Errorf("%w: tile %s has room for %d more %s", ErrStackFull, t, inv.room(), typ)
	}
	if !w.inventory.PlaceOnTile(t, NewInventory(typ, maxStack, size)) {
		return fmt.Errorf("%w: tile %s holds %s", ErrInventoryMismatch, t, t.inventory.Type)
	}
	return nil
}

// Update advances the simulation by dt seconds: characters first, then
// furniture, each in a fixed order. A panic in one entity is logged and the
// tick carries on with the next one.
func (w *World) Update(dt float64) {
	w.tick++
	for _, c := range w.Characters() {
		w.guard("character", c.ID, func() { c.Update(dt) })
	}
	for _, f := range w.Furniture() {
		b := f.behavior()
		if b.Update == nil || f.tile == nil {
			continue
		}
		w.guard("furniture", f.tile.String(), func() { b.Update(f, dt) })
	}
}

func (w *World) guard(kind, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("entity update panicked",
				zap.String("kind", kind),
				zap.String("id", id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}

// RegisterBehavior installs or replaces a furniture behaviour.
func (w *World) RegisterBehavior(id string, b Behavior) {
	w.behaviors[id] = b
}
