package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/basebuild/server/game/relay"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
	maxMessage    = 64 << 10
)

// Packet is the envelope of client commands and their replies. World events
// are forwarded as relay envelopes, not packets.
type Packet struct {
	Seq     uint64          `json:"seq,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one connected event stream client.
type Session struct {
	ID       string
	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	LastSeq  uint64
	TraceID  string

	mu     sync.Mutex
	filter relay.Filter
	once   sync.Once
	logger *zap.Logger
}

// NewSession creates a Session and starts its write goroutine.
func NewSession(conn *websocket.Conn, filter relay.Filter, logger *zap.Logger) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Conn:     conn,
		SendChan: make(chan []byte, sendChanBuf),
		Done:     make(chan struct{}),
		filter:   filter,
		logger:   logger,
	}
	go s.writePump()
	return s
}

// writePump drains SendChan and writes to the WebSocket connection.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error", zap.String("session", s.ID), zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and sends it non-blocking.
func (s *Session) Send(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	s.SendRaw(data)
}

// Reply answers a client packet with the same seq.
func (s *Session) Reply(req *Packet, typ string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("ws reply encode failed", zap.String("type", typ), zap.Error(err))
		return
	}
	s.Send(&Packet{Seq: req.Seq, Type: typ, Payload: raw})
}

// SendRaw sends raw bytes non-blocking. Drops if channel full or closed.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		s.logger.Warn("send channel full, dropping message", zap.String("session", s.ID))
	}
}

// Close signals the writePump to shut down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.Done) })
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SetFilter replaces the event type filter.
func (s *Session) SetFilter(f relay.Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Wants reports whether an event payload passes the session's filter.
func (s *Session) Wants(payload string) bool {
	s.mu.Lock()
	f := s.filter
	s.mu.Unlock()
	_, ok := f.Match(payload)
	return ok
}

func (s *Session) setReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
