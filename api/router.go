// Package api assembles the HTTP surface: REST, SSE and websocket routes
// behind the shared middleware chain.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/api/rest"
	"github.com/kasuganosora/basebuild/server/api/sse"
	"github.com/kasuganosora/basebuild/server/api/ws"
	"github.com/kasuganosora/basebuild/server/audit"
	"github.com/kasuganosora/basebuild/server/config"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	mw "github.com/kasuganosora/basebuild/server/middleware"
	"github.com/kasuganosora/basebuild/server/persist"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"github.com/kasuganosora/basebuild/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deps are the services the routes are built on. Ledger, Scheduler and
// Stream may be nil.
type Deps struct {
	Engine    *sim.Engine
	Options   world.Options
	Saves     persist.Backend
	Ledger    *audit.Service
	Scheduler *scheduler.Scheduler
	Stream    rest.StreamStats
	PubSub    pubsub.PubSub
	Security  config.SecurityConfig
	AdminKey  string
	Logger    *zap.Logger
}

// NewRouter builds the gin engine. Background work owned by the middleware
// (rate limiter sweeps) stops when ctx is done.
func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger, "/health"), mw.Recovery(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Event streams are long-lived and sit outside the rate limiter.
	sseH := sse.NewHandler(d.PubSub, d.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	wsRouter := ws.NewRouter(logger)
	ws.RegisterCommands(wsRouter, d.Engine)
	wsH := ws.NewHandler(d.PubSub, d.Security, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	apiG := r.Group("/api")
	if d.Security.RateLimitRPS > 0 {
		apiG.Use(mw.RateLimit(ctx, rate.Limit(d.Security.RateLimitRPS), d.Security.RateLimitBurst))
	}
	rest.NewWorldHandler(d.Engine, logger).Register(apiG)

	adminG := apiG.Group("/admin", mw.IPWhitelist(d.Security.AdminIPs, logger), mw.AdminKey(d.AdminKey))
	rest.NewAdminHandler(rest.AdminDeps{
		Engine:    d.Engine,
		Saves:     d.Saves,
		Options:   d.Options,
		Ledger:    d.Ledger,
		Scheduler: d.Scheduler,
		Stream:    d.Stream,
	}, logger).Register(adminG)

	return r
}
