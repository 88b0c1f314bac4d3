package world

// Views are the read-only JSON shapes handed to renderers and HTTP clients.

type TileView struct {
	X          int            `json:"x"`
	Y          int            `json:"y"`
	Kind       string         `json:"kind"`
	Cost       float64        `json:"movement_cost"`
	Furniture  *FurnitureView `json:"furniture,omitempty"`
	Inventory  *InventoryView `json:"inventory,omitempty"`
	PendingJob string         `json:"pending_job,omitempty"`
}

type FurnitureView struct {
	X        int                `json:"x"`
	Y        int                `json:"y"`
	Type     string             `json:"type"`
	Behavior string             `json:"behavior,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
	Jobs     int                `json:"jobs"`
}

type InventoryView struct {
	Type         string `json:"type"`
	StackSize    int    `json:"stack_size"`
	MaxStackSize int    `json:"max_stack_size"`
	X            *int   `json:"x,omitempty"`
	Y            *int   `json:"y,omitempty"`
	Character    string `json:"character,omitempty"`
}

type JobView struct {
	ID                   string          `json:"id"`
	X                    int             `json:"x"`
	Y                    int             `json:"y"`
	FurnitureType        string          `json:"furniture_type,omitempty"`
	State                string          `json:"state"`
	WorkTime             float64         `json:"work_time"`
	AcceptsAnyInventory  bool            `json:"accepts_any_inventory"`
	CanTakeFromStockpile bool            `json:"can_take_from_stockpile"`
	Requirements         []InventoryView `json:"requirements,omitempty"`
}

type CharacterView struct {
	ID        string         `json:"id"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	TileX     int            `json:"tile_x"`
	TileY     int            `json:"tile_y"`
	DestX     int            `json:"dest_x"`
	DestY     int            `json:"dest_y"`
	Job       string         `json:"job,omitempty"`
	Inventory *InventoryView `json:"inventory,omitempty"`
}

func (t *Tile) View() TileView {
	v := TileView{X: t.X, Y: t.Y, Kind: t.kind.String(), Cost: t.MovementCost()}
	if t.furniture != nil {
		fv := t.furniture.View()
		v.Furniture = &fv
	}
	if t.inventory != nil {
		iv := t.inventory.View()
		v.Inventory = &iv
	}
	if t.pendingJob != nil {
		v.PendingJob = t.pendingJob.ID
	}
	return v
}

func (f *Furniture) View() FurnitureView {
	v := FurnitureView{Type: f.objectType, Behavior: f.behaviorID, Params: f.Params(), Jobs: len(f.jobs)}
	if f.tile != nil {
		v.X, v.Y = f.tile.X, f.tile.Y
	}
	return v
}

func (inv *Inventory) View() InventoryView {
	v := InventoryView{Type: inv.Type, StackSize: inv.StackSize, MaxStackSize: inv.MaxStackSize}
	if inv.tile != nil {
		x, y := inv.tile.X, inv.tile.Y
		v.X, v.Y = &x, &y
	}
	if inv.character != nil {
		v.Character = inv.character.ID
	}
	return v
}

func (j *Job) View() JobView {
	v := JobView{
		ID:                   j.ID,
		FurnitureType:        j.FurnitureType,
		State:                j.state.String(),
		WorkTime:             j.workTime,
		AcceptsAnyInventory:  j.AcceptsAnyInventory,
		CanTakeFromStockpile: j.CanTakeFromStockpile,
	}
	if j.tile != nil {
		v.X, v.Y = j.tile.X, j.tile.Y
	}
	for _, r := range j.Requirements() {
		v.Requirements = append(v.Requirements, r.View())
	}
	return v
}

func (c *Character) View() CharacterView {
	x, y := c.Position()
	v := CharacterView{
		ID: c.ID, X: x, Y: y,
		TileX: c.curr.X, TileY: c.curr.Y,
		DestX: c.dest.X, DestY: c.dest.Y,
	}
	if c.job != nil {
		v.Job = c.job.ID
	}
	if c.inventory != nil {
		iv := c.inventory.View()
		v.Inventory = &iv
	}
	return v
}
