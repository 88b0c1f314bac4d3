package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/persist"
)

// statusOf maps domain sentinels onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, world.ErrNoTile),
		errors.Is(err, world.ErrUnknownFurniture),
		errors.Is(err, persist.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, world.ErrTileOccupied),
		errors.Is(err, world.ErrPendingJob),
		errors.Is(err, world.ErrJobFinished),
		errors.Is(err, world.ErrInventoryMismatch),
		errors.Is(err, world.ErrStackFull):
		return http.StatusConflict
	case errors.Is(err, world.ErrInvalidPlacement),
		errors.Is(err, world.ErrSnapshotVersion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, persist.ErrInvalidName), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// fail writes err as {"error": ...}. Internal errors are attached to the gin
// context for the request logger and hidden from the client.
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// coords parses the :x and :y path parameters.
func coords(c *gin.Context) (int, int, bool) {
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	if errX != nil || errY != nil {
		badRequest(c, "invalid coordinates")
		return 0, 0, false
	}
	return x, y, true
}

// tileAt is TileAt with ErrNoTile for out-of-range coordinates.
func tileAt(w *world.World, x, y int) (*world.Tile, error) {
	t := w.TileAt(x, y)
	if t == nil {
		return nil, world.ErrNoTile
	}
	return t, nil
}
