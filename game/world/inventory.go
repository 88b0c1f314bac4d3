package world

// Inventory is a stack of a single resource type. It is owned by one tile, one
// character, or one job requirement at a time.
type Inventory struct {
	Type         string
	StackSize    int
	MaxStackSize int

	tile      *Tile
	character *Character
}

// NewInventory returns an unowned stack.
func NewInventory(typ string, maxStack, size int) *Inventory {
	return &Inventory{Type: typ, StackSize: size, MaxStackSize: maxStack}
}

// Clone returns an unowned copy.
func (inv *Inventory) Clone() *Inventory {
	return &Inventory{Type: inv.Type, StackSize: inv.StackSize, MaxStackSize: inv.MaxStackSize}
}

// Tile returns the tile holding the stack, if any.
func (inv *Inventory) Tile() *Tile { return inv.tile }

// Character returns the character carrying the stack, if any.
func (inv *Inventory) Character() *Character { return inv.character }

func (inv *Inventory) room() int {
	if r := inv.MaxStackSize - inv.StackSize; r > 0 {
		return r
	}
	return 0
}
