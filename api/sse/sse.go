// Package sse streams world events to browsers as server-sent events.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/config"
	"github.com/kasuganosora/basebuild/server/game/relay"
	mw "github.com/kasuganosora/basebuild/server/middleware"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"go.uber.org/zap"
)

const retryMs = 3000

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub      pubsub.PubSub
	channel     string
	checkOrigin func(*http.Request) bool
	logger      *zap.Logger

	// Keepalive is the interval between comment lines that keep proxies from
	// timing the stream out.
	Keepalive time.Duration
}

// NewHandler creates a new SSE Handler reading the world event channel.
func NewHandler(ps pubsub.PubSub, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pubsub:      ps,
		channel:     pubsub.EventsChannel,
		checkOrigin: mw.OriginChecker(sec.AllowedOrigins),
		logger:      logger,
		Keepalive:   30 * time.Second,
	}
}

// ServeSSE handles GET /sse?types=<comma separated event types>.
// Each world event is written with its type as the SSE event name.
func (h *Handler) ServeSSE(c *gin.Context) {
	if !h.checkOrigin(c.Request) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}
	filter := relay.ParseFilter(c.Query("types"))

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, h.channel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Browsers reconnect after retry ms; there is no replay, so a client that
	// reconnects refetches state on the connected event.
	fmt.Fprintf(c.Writer, "retry: %d\nevent: connected\ndata: {}\n\n", retryMs)
	c.Writer.Flush()
	h.logger.Debug("sse client connected",
		zap.String("ip", c.ClientIP()),
		zap.Int("filter", len(filter)))

	ticker := time.NewTicker(h.Keepalive)
	defer ticker.Stop()

	var id uint64

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			typ, pass := filter.Match(msg.Payload)
			if !pass {
				continue
			}
			id++
			if _, err := fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", id, typ, msg.Payload); err != nil {
				return
			}
			c.Writer.Flush()

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
