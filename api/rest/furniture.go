package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/kasuganosora/basebuild/server/game/world"
	"go.uber.org/zap"
)

// Prototypes handles GET /api/furniture/prototypes.
func (h *WorldHandler) Prototypes(c *gin.Context) {
	var defs []catalog.FurnitureDef
	_ = h.eng.Do(func(w *world.World) error {
		cat := w.Catalog()
		for _, name := range cat.Names() {
			d, _ := cat.Lookup(name)
			defs = append(defs, d)
		}
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"prototypes": defs})
}

// Prototype handles GET /api/furniture/prototypes/:type. An unknown type
// answers 404 with the closest known name, if any.
func (h *WorldHandler) Prototype(c *gin.Context) {
	typ := c.Param("type")
	var (
		def        catalog.FurnitureDef
		found      bool
		suggestion string
	)
	_ = h.eng.Do(func(w *world.World) error {
		def, found = w.FurniturePrototype(typ)
		if !found {
			suggestion = w.Catalog().Suggest(typ)
		}
		return nil
	})
	if !found {
		body := gin.H{"error": "unknown furniture type"}
		if suggestion != "" {
			body["suggestion"] = suggestion
		}
		c.JSON(http.StatusNotFound, body)
		return
	}
	c.JSON(http.StatusOK, def)
}

// Valid handles GET /api/furniture/valid?type=&x=&y=.
func (h *WorldHandler) Valid(c *gin.Context) {
	typ := c.Query("type")
	x, errX := strconv.Atoi(c.Query("x"))
	y, errY := strconv.Atoi(c.Query("y"))
	if typ == "" || errX != nil || errY != nil {
		badRequest(c, "type, x and y are required")
		return
	}
	var valid bool
	_ = h.eng.Do(func(w *world.World) error {
		valid = w.IsFurniturePlacementValid(typ, w.TileAt(x, y))
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"type": typ, "x": x, "y": y, "valid": valid})
}

// ListFurniture handles GET /api/furniture.
func (h *WorldHandler) ListFurniture(c *gin.Context) {
	views := make([]world.FurnitureView, 0)
	_ = h.eng.Do(func(w *world.World) error {
		for _, f := range w.Furniture() {
			views = append(views, f.View())
		}
		return nil
	})
	c.JSON(http.StatusOK, gin.H{"furniture": views})
}

type placeRequest struct {
	Type    string `json:"type" binding:"required"`
	X       *int   `json:"x" binding:"required"`
	Y       *int   `json:"y" binding:"required"`
	Instant bool   `json:"instant"`
}

// Place handles POST /api/furniture. By default it posts a build job (202);
// with "instant" the furniture is installed immediately (201).
func (h *WorldHandler) Place(c *gin.Context) {
	var req placeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var (
		status int
		body   any
	)
	err := h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, *req.X, *req.Y)
		if err != nil {
			return err
		}
		if req.Instant {
			f, err := w.PlaceFurniture(req.Type, t)
			if err != nil {
				return err
			}
			status, body = http.StatusCreated, f.View()
			return nil
		}
		j, err := w.BuildFurniture(req.Type, t)
		if err != nil {
			return err
		}
		status, body = http.StatusAccepted, j.View()
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.logger.Debug("furniture ordered",
		zap.String("type", req.Type),
		zap.Int("x", *req.X), zap.Int("y", *req.Y),
		zap.Bool("instant", req.Instant))
	c.JSON(status, body)
}

// Uninstall handles DELETE /api/furniture/:x/:y.
func (h *WorldHandler) Uninstall(c *gin.Context) {
	x, y, ok := coords(c)
	if !ok {
		return
	}
	var removed bool
	err := h.eng.Do(func(w *world.World) error {
		t, err := tileAt(w, x, y)
		if err != nil {
			return err
		}
		removed = w.UninstallFurniture(t)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "no furniture on tile"})
		return
	}
	c.Status(http.StatusNoContent)
}
