// Package ws serves the world event stream over websockets, with a small
// command set for clients that want to act on what they see.
package ws

import (
	"context"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/basebuild/server/config"
	"github.com/kasuganosora/basebuild/server/game/relay"
	mw "github.com/kasuganosora/basebuild/server/middleware"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	pubsub   pubsub.PubSub
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
	sessions atomic.Int64
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(ps pubsub.PubSub, sec config.SecurityConfig, router *Router, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pubsub: ps,
		router: router,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     mw.OriginChecker(sec.AllowedOrigins),
		},
	}
}

// Sessions returns the number of open connections.
func (h *Handler) Sessions() int64 { return h.sessions.Load() }

// ServeWS handles GET /ws?types=<comma separated event types>.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessage)
	s := NewSession(conn, relay.ParseFilter(c.Query("types")), h.logger)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, pubsub.EventsChannel)
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.Error(err))
		s.Close()
		return
	}
	defer unsub()

	h.sessions.Add(1)
	defer h.sessions.Add(-1)
	h.logger.Info("ws client connected", zap.String("session", s.ID), zap.String("ip", c.ClientIP()))
	s.Reply(&Packet{}, "connected", connected{Session: s.ID, Commands: h.router.Types()})

	go h.forward(s, msgCh)
	h.readPump(ctx, s)
}

type connected struct {
	Session  string   `json:"session"`
	Commands []string `json:"commands"`
}

// forward copies matching world events to the session until either side ends.
func (h *Handler) forward(s *Session, msgCh <-chan *pubsub.Message) {
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.Close()
				return
			}
			if s.Wants(msg.Payload) {
				s.SendRaw([]byte(msg.Payload))
			}
		case <-s.Done:
			return
		}
	}
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(ctx context.Context, s *Session) {
	defer func() {
		s.Close()
		h.logger.Info("ws client disconnected", zap.String("session", s.ID))
	}()

	s.setReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.setReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}
		// Reset read deadline on any message (heartbeat or otherwise).
		s.setReadDeadline()
		h.router.Dispatch(ctx, s, raw)
	}
}
