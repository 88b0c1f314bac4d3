package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	mw "github.com/kasuganosora/basebuild/server/middleware"
	"go.uber.org/zap"
)

// ErrBadPayload is returned by handlers that cannot decode their payload.
var ErrBadPayload = errors.New("ws: malformed payload")

// commandTimeout bounds a single command so a stuck world lock cannot pin
// the read loop forever.
const commandTimeout = 5 * time.Second

// HandlerFunc processes one decoded client packet.
type HandlerFunc func(ctx context.Context, s *Session, pkt *Packet) error

// Router maps packet types to command handlers.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers fn for msgType, replacing any earlier handler.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Types lists the registered packet types in order.
func (r *Router) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type errorReply struct {
	Request string `json:"request"`
	Error   string `json:"error"`
}

// Dispatch decodes one packet and runs its handler under ctx. Packets with a
// seq at or below the last accepted one are dropped; seq 0 is never tracked.
// Unknown types and handler errors are answered with an "error" packet.
func (r *Router) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil || pkt.Type == "" {
		r.logger.Debug("malformed packet", zap.String("session", s.ID), zap.Error(err))
		s.Reply(&pkt, "error", errorReply{Error: "malformed packet"})
		return
	}

	if pkt.Seq != 0 {
		if pkt.Seq <= s.LastSeq {
			r.logger.Warn("stale packet dropped",
				zap.String("session", s.ID),
				zap.Uint64("seq", pkt.Seq),
				zap.Uint64("last_seq", s.LastSeq))
			return
		}
		s.LastSeq = pkt.Seq
	}

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		s.Reply(&pkt, "error", errorReply{Request: pkt.Type, Error: "unknown message type"})
		return
	}

	s.TraceID = mw.NewTraceID()
	ctx, cancel := context.WithTimeout(mw.WithTraceID(ctx, s.TraceID), commandTimeout)
	defer cancel()

	if err := fn(ctx, s, &pkt); err != nil {
		r.logger.Debug("command failed",
			zap.String("type", pkt.Type),
			zap.String("session", s.ID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
		s.Reply(&pkt, "error", errorReply{Request: pkt.Type, Error: err.Error()})
	}
}
