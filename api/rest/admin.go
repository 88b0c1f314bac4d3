package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/audit"
	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/persist"
	"github.com/kasuganosora/basebuild/server/scheduler"
	"go.uber.org/zap"
)

// StreamStats is implemented by the event relay.
type StreamStats interface {
	Published() uint64
	Dropped() uint64
}

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by the AdminKey middleware.
type AdminHandler struct {
	eng    *sim.Engine
	saves  persist.Backend
	opts   world.Options
	ledger *audit.Service
	sched  *scheduler.Scheduler
	stream StreamStats
	logger *zap.Logger
}

// AdminDeps groups the AdminHandler's collaborators. Ledger, Scheduler and
// Stream may be nil.
type AdminDeps struct {
	Engine    *sim.Engine
	Saves     persist.Backend
	Options   world.Options
	Ledger    *audit.Service
	Scheduler *scheduler.Scheduler
	Stream    StreamStats
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(d AdminDeps, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		eng:    d.Engine,
		saves:  d.Saves,
		opts:   d.Options,
		ledger: d.Ledger,
		sched:  d.Scheduler,
		stream: d.Stream,
		logger: logger,
	}
}

// Metrics returns engine, scheduler and event stream counters.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	body := gin.H{"engine": h.eng.Stats()}
	if h.sched != nil {
		body["scheduler"] = h.sched.Stats()
	}
	if h.stream != nil {
		body["events"] = gin.H{
			"published": h.stream.Published(),
			"dropped":   h.stream.Dropped(),
		}
	}
	c.JSON(http.StatusOK, body)
}

// Pause stops or resumes the simulation clock.
// POST /api/admin/pause {"paused": true}
func (h *AdminHandler) Pause(c *gin.Context) {
	var req struct {
		Paused *bool `json:"paused" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.eng.SetPaused(*req.Paused)
	h.logger.Info("simulation pause toggled", zap.Bool("paused", *req.Paused))
	c.JSON(http.StatusOK, gin.H{"paused": *req.Paused})
}

// ListSaves returns stored snapshots.
// GET /api/admin/saves
func (h *AdminHandler) ListSaves(c *gin.Context) {
	infos, err := h.saves.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if infos == nil {
		infos = []persist.Info{}
	}
	c.JSON(http.StatusOK, gin.H{"saves": infos})
}

// Save stores the current world under :name, replacing any earlier save.
// POST /api/admin/saves/:name
func (h *AdminHandler) Save(c *gin.Context) {
	info, err := persist.SaveEngine(c.Request.Context(), h.saves, h.eng, c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("world saved", zap.String("name", info.Name), zap.Uint64("tick", info.Tick))
	c.JSON(http.StatusOK, info)
}

// Load replaces the running world with the named snapshot. Queued jobs in
// the old world are discarded.
// POST /api/admin/saves/:name/load
func (h *AdminHandler) Load(c *gin.Context) {
	var cat *catalog.Catalog
	_ = h.eng.Do(func(w *world.World) error {
		cat = w.Catalog()
		return nil
	})
	name := c.Param("name")
	w, err := persist.LoadEngine(c.Request.Context(), h.saves, h.eng, name, h.opts, cat, h.logger)
	if err != nil {
		fail(c, err)
		return
	}
	width, height := w.Dimensions()
	h.logger.Info("world loaded", zap.String("name", name), zap.Uint64("tick", w.Tick()))
	c.JSON(http.StatusOK, gin.H{"name": name, "tick": w.Tick(), "width": width, "height": height})
}

// DeleteSave removes a stored snapshot.
// DELETE /api/admin/saves/:name
func (h *AdminHandler) DeleteSave(c *gin.Context) {
	if err := h.saves.Delete(c.Request.Context(), c.Param("name")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JobLog returns recorded job lifecycle events, either for one job
// (?job_id=) or the most recent ones (?limit=).
// GET /api/admin/joblog
func (h *AdminHandler) JobLog(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job audit disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if id := c.Query("job_id"); id != "" {
		logs, err := h.ledger.History(ctx, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": logs})
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	logs, err := h.ledger.Recent(ctx, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs})
}
