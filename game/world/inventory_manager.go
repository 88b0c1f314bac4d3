package world

import (
	"sort"

	"go.uber.org/zap"
)

// InventoryManager is the ledger of every tile- and character-held stack,
// grouped by resource type. Stacks with zero quantity never stay registered.
type InventoryManager struct {
	world  *World
	stacks map[string][]*Inventory
	logger *zap.Logger
}

func newInventoryManager(w *World, logger *zap.Logger) *InventoryManager {
	return &InventoryManager{
		world:  w,
		stacks: make(map[string][]*Inventory),
		logger: logger,
	}
}

func (m *InventoryManager) register(inv *Inventory) {
	m.stacks[inv.Type] = append(m.stacks[inv.Type], inv)
}

func (m *InventoryManager) unregister(inv *Inventory) {
	list := m.stacks[inv.Type]
	for i, x := range list {
		if x == inv {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.stacks, inv.Type)
		return
	}
	m.stacks[inv.Type] = list
}

// cleanup drops an emptied stack from its owner and the ledger.
func (m *InventoryManager) cleanup(inv *Inventory) {
	if inv.StackSize > 0 {
		return
	}
	m.unregister(inv)
	if inv.tile != nil {
		inv.tile.inventory = nil
		inv.tile = nil
	}
	if inv.character != nil {
		inv.character.inventory = nil
		inv.character = nil
	}
}

// PlaceOnTile moves src onto t. An empty tile receives a copy of the whole
// stack; a tile holding the same type is topped up to its max and the rest
// stays on src. A different type fails without changing anything.
func (m *InventoryManager) PlaceOnTile(t *Tile, src *Inventory) bool {
	if t == nil || src == nil || src.StackSize <= 0 {
		return false
	}
	if t.inventory == nil {
		inv := src.Clone()
		inv.tile = t
		t.inventory = inv
		src.StackSize = 0
		m.cleanup(src)
		m.register(inv)
		m.world.events.InventoryCreated.Emit(inv)
		return true
	}
	if t.inventory.Type != src.Type {
		return false
	}
	moved := min(src.StackSize, t.inventory.room())
	t.inventory.StackSize += moved
	src.StackSize -= moved
	m.cleanup(src)
	return true
}

// PlaceInJob delivers src into the job's matching requirement. Accept-any jobs
// open a requirement on first delivery. Quantity beyond the requirement stays
// on src. Every delivery fires the job's worked event.
func (m *InventoryManager) PlaceInJob(j *Job, src *Inventory) bool {
	if j == nil || src == nil || src.StackSize <= 0 || j.Terminal() {
		return false
	}
	if j.Desires(src) <= 0 {
		m.logger.Error("job does not want this inventory",
			zap.String("job_id", j.ID), zap.String("type", src.Type))
		return false
	}
	req, ok := j.requirements[src.Type]
	if !ok {
		req = &Inventory{Type: src.Type, MaxStackSize: src.MaxStackSize}
		j.requirements[src.Type] = req
	}
	moved := min(src.StackSize, req.room())
	req.StackSize += moved
	src.StackSize -= moved
	m.cleanup(src)
	j.emitWorked()
	return true
}

// PlaceOnCharacter picks up amount from src (negative means all of it). The
// first pickup gives the character its own stack; picking up a different type
// than the one carried is rejected. Quantity that does not fit stays on src.
func (m *InventoryManager) PlaceOnCharacter(c *Character, src *Inventory, amount int) bool {
	if c == nil || src == nil || src.StackSize <= 0 {
		return false
	}
	if amount < 0 || amount > src.StackSize {
		amount = src.StackSize
	}
	if c.inventory == nil {
		inv := src.Clone()
		inv.StackSize = 0
		inv.character = c
		c.inventory = inv
		m.register(inv)
	} else if c.inventory.Type != src.Type {
		m.logger.Error("character picking up a mismatched inventory type",
			zap.String("character_id", c.ID),
			zap.String("carrying", c.inventory.Type),
			zap.String("source", src.Type))
		return false
	}
	moved := min(amount, c.inventory.room())
	c.inventory.StackSize += moved
	src.StackSize -= moved
	m.cleanup(src)
	m.cleanup(c.inventory)
	return true
}

// ClosestOfType returns the first tile-held stack of typ in ledger order,
// skipping stockpiles unless allowStockpile is set. It does not measure
// distance: the result is any reachable-in-principle source, not the nearest.
func (m *InventoryManager) ClosestOfType(typ string, from *Tile, desired int, allowStockpile bool) *Inventory {
	for _, inv := range m.stacks[typ] {
		if inv.tile != nil && sourceAllowed(inv.tile, allowStockpile) {
			return inv
		}
	}
	m.logger.Debug("no inventory of requested type",
		zap.String("type", typ), zap.Stringer("from", from), zap.Int("desired", desired))
	return nil
}

// FirstAvailable returns the first tile-held stack of any type, types visited
// in sorted order.
func (m *InventoryManager) FirstAvailable(allowStockpile bool) *Inventory {
	for _, typ := range m.Types() {
		for _, inv := range m.stacks[typ] {
			if inv.tile != nil && sourceAllowed(inv.tile, allowStockpile) {
				return inv
			}
		}
	}
	return nil
}

func sourceAllowed(t *Tile, allowStockpile bool) bool {
	return allowStockpile || t.furniture == nil || !t.furniture.IsStockpile()
}

// Total returns the quantity of typ across the ledger.
func (m *InventoryManager) Total(typ string) int {
	n := 0
	for _, inv := range m.stacks[typ] {
		n += inv.StackSize
	}
	return n
}

// Stacks returns the registered stacks of typ.
func (m *InventoryManager) Stacks(typ string) []*Inventory {
	return append([]*Inventory(nil), m.stacks[typ]...)
}

// Types returns every registered resource type in sorted order.
func (m *InventoryManager) Types() []string {
	out := make([]string, 0, len(m.stacks))
	for k := range m.stacks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
