package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/game/world"
)

// ListCharacters handles GET /api/characters.
func (h *WorldHandler) ListCharacters(c *gin.Context) {
	views := make([]world.CharacterView, 0)
	_ = h.eng.Do(func(w *world.World) error {
		for _, ch := range w.Characters() {
			views = append(views, ch.View())
		}
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"characters": views})
}

// GetCharacter handles GET /api/characters/:id.
func (h *WorldHandler) GetCharacter(c *gin.Context) {
	var (
		view  world.CharacterView
		found bool
	)
	_ = h.eng.Do(func(w *world.World) error {
		if ch := w.Character(c.Param("id")); ch != nil {
			view, found = ch.View(), true
		}
		return nil
	})
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateCharacter handles POST /api/characters with {"x", "y", "speed"}.
func (h *WorldHandler) CreateCharacter(c *gin.Context) {
	var req struct {
		X     *int    `json:"x" binding:"required"`
		Y     *int    `json:"y" binding:"required"`
		Speed float64 `json:"speed" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var view world.CharacterView
	err := h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, *req.X, *req.Y)
		if err != nil {
			return err
		}
		ch, err := w.CreateCharacter(t)
		if err != nil {
			return err
		}
		if req.Speed > 0 {
			ch.SetSpeed(req.Speed)
		}
		view = ch.View()
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Inventory handles GET /api/inventory: every loose, stocked or carried
// stack, grouped by type.
func (h *WorldHandler) Inventory(c *gin.Context) {
	type group struct {
		Total  int                   `json:"total"`
		Stacks []world.InventoryView `json:"stacks"`
	}
	out := make(map[string]group)
	_ = h.eng.Do(func(w *world.World) error {
		im := w.Inventory()
		for _, typ := range im.Types() {
			g := group{Total: im.Total(typ)}
			for _, inv := range im.Stacks(typ) {
				g.Stacks = append(g.Stacks, inv.View())
			}
			out[typ] = g
		}
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"inventory": out})
}

// SpawnInventory handles POST /api/inventory.
func (h *WorldHandler) SpawnInventory(c *gin.Context) {
	var req struct {
		X            *int   `json:"x" binding:"required"`
		Y            *int   `json:"y" binding:"required"`
		Type         string `json:"type" binding:"required"`
		StackSize    int    `json:"stack_size" binding:"gt=0"`
		MaxStackSize int    `json:"max_stack_size" binding:"gt=0,gtefield=StackSize"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var view world.TileView
	err := h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, *req.X, *req.Y)
		if err != nil {
			return err
		}
		if err := w.SpawnInventory(t, req.Type, req.MaxStackSize, req.StackSize); err != nil {
			return err
		}
		view = t.View()
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}
