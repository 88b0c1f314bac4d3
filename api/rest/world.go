package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	"go.uber.org/zap"
)

// maxRegion caps GET /api/tiles.
const maxRegion = 64 * 64

// WorldHandler serves queries and commands against the running world. Every
// handler runs its world access inside Engine.Do, between ticks.
type WorldHandler struct {
	eng    *sim.Engine
	logger *zap.Logger
}

// NewWorldHandler creates a WorldHandler.
func NewWorldHandler(eng *sim.Engine, logger *zap.Logger) *WorldHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorldHandler{eng: eng, logger: logger}
}

type worldInfo struct {
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Tick       uint64         `json:"tick"`
	Diagonal   bool           `json:"diagonal"`
	Generation uint64         `json:"generation"`
	Characters int            `json:"characters"`
	Furniture  int            `json:"furniture"`
	QueuedJobs int            `json:"queued_jobs"`
	ActiveJobs int            `json:"active_jobs"`
	Stock      map[string]int `json:"stock"`
}

// World handles GET /api/world.
func (h *WorldHandler) World(c *gin.Context) {
	var info worldInfo
	_ = h.eng.Do(func(w *world.World) error {
		info = worldInfo{
			Width:      w.Width(),
			Height:     w.Height(),
			Tick:       w.Tick(),
			Diagonal:   w.Diagonal(),
			Generation: w.Generation(),
			Characters: len(w.Characters()),
			Furniture:  len(w.Furniture()),
			QueuedJobs: w.Queue().Len(),
			ActiveJobs: len(w.Jobs()),
			Stock:      make(map[string]int),
		}
		for _, typ := range w.Inventory().Types() {
			info.Stock[typ] = w.Inventory().Total(typ)
		}
		return nil
	})
	c.JSON(http.StatusOK, info)
}

// Tile handles GET /api/tiles/:x/:y.
func (h *WorldHandler) Tile(c *gin.Context) {
	x, y, ok := coords(c)
	if !ok {
		return
	}
	var view world.TileView
	err := h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, x, y)
		if err != nil {
			return err
		}
		view = t.View()
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Region handles GET /api/tiles?x0=&y0=&x1=&y1= (inclusive, clipped to the
// grid). Renderers use it to fetch the initial map in chunks.
func (h *WorldHandler) Region(c *gin.Context) {
	var b [4]int
	for i, k := range []string{"x0", "y0", "x1", "y1"} {
		v, err := strconv.Atoi(c.Query(k))
		if err != nil {
			badRequest(c, "x0, y0, x1 and y1 are required integers")
			return
		}
		b[i] = v
	}
	x0, y0, x1, y1 := b[0], b[1], b[2], b[3]
	if x1 < x0 || y1 < y0 {
		badRequest(c, "empty region")
		return
	}
	if (x1-x0+1)*(y1-y0+1) > maxRegion {
		badRequest(c, fmt.Sprintf("region larger than %d tiles", maxRegion))
		return
	}
	views := make([]world.TileView, 0)
	_ = h.eng.Do(func(w *world.World) error {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if t := w.TileAt(x, y); t != nil {
					views = append(views, t.View())
				}
			}
		}
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"tiles": views})
}

// SetTile handles PUT /api/tiles/:x/:y with {"kind": "Floor"|"Empty"}.
func (h *WorldHandler) SetTile(c *gin.Context) {
	x, y, ok := coords(c)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	kind, err := world.ParseTileKind(req.Kind)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var view world.TileView
	err = h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, x, y)
		if err != nil {
			return err
		}
		w.SetTileKind(t, kind)
		view = t.View()
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
