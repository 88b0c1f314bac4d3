package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/game/world"
)

// ListJobs handles GET /api/jobs. Queued jobs and jobs claimed by a
// character are both listed.
func (h *WorldHandler) ListJobs(c *gin.Context) {
	views := make([]world.JobView, 0)
	_ = h.eng.Do(func(w *world.World) error {
		for _, j := range w.Jobs() {
			views = append(views, j.View())
		}
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// GetJob handles GET /api/jobs/:id.
func (h *WorldHandler) GetJob(c *gin.Context) {
	var (
		view  world.JobView
		found bool
	)
	_ = h.eng.Do(func(w *world.World) error {
		if j := w.FindJob(c.Param("id")); j != nil {
			view, found = j.View(), true
		}
		return nil
	})
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

type jobRequest struct {
	X                    *int    `json:"x" binding:"required"`
	Y                    *int    `json:"y" binding:"required"`
	WorkTime             float64 `json:"work_time" binding:"gte=0"`
	AcceptsAnyInventory  bool    `json:"accepts_any_inventory"`
	CanTakeFromStockpile *bool   `json:"can_take_from_stockpile"`
	Requirements         []struct {
		Type   string `json:"type" binding:"required"`
		Amount int    `json:"amount" binding:"gt=0"`
	} `json:"requirements" binding:"dive"`
}

// CreateJob handles POST /api/jobs: a plain work order at a tile, optionally
// needing materials hauled to it.
func (h *WorldHandler) CreateJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reqs := make([]*world.Inventory, 0, len(req.Requirements))
	seen := make(map[string]bool)
	for _, r := range req.Requirements {
		if seen[r.Type] {
			badRequest(c, fmt.Sprintf("duplicate requirement %q", r.Type))
			return
		}
		seen[r.Type] = true
		reqs = append(reqs, world.NewInventory(r.Type, r.Amount, 0))
	}
	var view world.JobView
	err := h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, *req.X, *req.Y)
		if err != nil {
			return err
		}
		j := world.NewJob(t, "", req.WorkTime, reqs)
		j.AcceptsAnyInventory = req.AcceptsAnyInventory
		if req.CanTakeFromStockpile != nil {
			j.CanTakeFromStockpile = *req.CanTakeFromStockpile
		}
		if err := w.EnqueueJob(j); err != nil {
			return err
		}
		view = j.View()
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// CancelJob handles DELETE /api/jobs/:id.
func (h *WorldHandler) CancelJob(c *gin.Context) {
	var found bool
	err := h.eng.Do(func(w *world.World) error {
		j := w.FindJob(c.Param("id"))
		if j == nil {
			return nil
		}
		found = true
		return w.CancelJob(j)
	})
	if err != nil {
		fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
