package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mw "github.com/kasuganosora/basebuild/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newSession creates a connectionless Session for testing.
func newSession() *Session {
	return &Session{
		ID:       "test",
		SendChan: make(chan []byte, 256),
		Done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
}

func makePacket(t *testing.T, seq uint64, msgType string, payload any) []byte {
	t.Helper()
	p, _ := json.Marshal(payload)
	b, err := json.Marshal(Packet{Seq: seq, Type: msgType, Payload: p})
	require.NoError(t, err)
	return b
}

func sent(t *testing.T, s *Session) Packet {
	t.Helper()
	select {
	case raw := <-s.SendChan:
		var pkt Packet
		require.NoError(t, json.Unmarshal(raw, &pkt))
		return pkt
	default:
		t.Fatal("nothing sent")
		return Packet{}
	}
}

func TestRouter_On_Dispatch_Basic(t *testing.T) {
	r := NewRouter(nil)
	called := false
	r.On("ping", func(ctx context.Context, s *Session, pkt *Packet) error {
		called = true
		assert.Equal(t, s.TraceID, mw.TraceIDFrom(ctx))
		assert.NotEmpty(t, s.TraceID)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})

	r.Dispatch(context.Background(), newSession(), makePacket(t, 1, "ping", nil))
	assert.True(t, called)
}

func TestRouter_Dispatch_MalformedJSON(t *testing.T) {
	r := NewRouter(nil)
	s := newSession()
	r.Dispatch(context.Background(), s, []byte("not json"))
	pkt := sent(t, s)
	assert.Equal(t, "error", pkt.Type)
	assert.Contains(t, string(pkt.Payload), "malformed packet")

	r.Dispatch(context.Background(), s, []byte(`{"seq":1}`))
	assert.Equal(t, "error", sent(t, s).Type)
	assert.Equal(t, uint64(0), s.LastSeq)
}

func TestRouter_Dispatch_UnknownType(t *testing.T) {
	r := NewRouter(nil)
	s := newSession()
	r.Dispatch(context.Background(), s, makePacket(t, 3, "unknown", nil))

	pkt := sent(t, s)
	assert.Equal(t, "error", pkt.Type)
	assert.Equal(t, uint64(3), pkt.Seq)
	assert.Contains(t, string(pkt.Payload), "unknown message type")
}

func TestRouter_Dispatch_HandlerErrorIsReplied(t *testing.T) {
	r := NewRouter(nil)
	r.On("boom", func(context.Context, *Session, *Packet) error { return errors.New("nope") })
	s := newSession()
	r.Dispatch(context.Background(), s, makePacket(t, 1, "boom", nil))

	pkt := sent(t, s)
	assert.Equal(t, "error", pkt.Type)
	var body errorReply
	require.NoError(t, json.Unmarshal(pkt.Payload, &body))
	assert.Equal(t, "boom", body.Request)
	assert.Equal(t, "nope", body.Error)
}

func TestRouter_Dispatch_AntiReplay_RejectsOldSeq(t *testing.T) {
	r := NewRouter(nil)
	var callCount int
	r.On("msg", func(context.Context, *Session, *Packet) error {
		callCount++
		return nil
	})
	s := newSession()

	r.Dispatch(context.Background(), s, makePacket(t, 5, "msg", nil))
	assert.Equal(t, 1, callCount)

	r.Dispatch(context.Background(), s, makePacket(t, 5, "msg", nil))
	r.Dispatch(context.Background(), s, makePacket(t, 4, "msg", nil))
	assert.Equal(t, 1, callCount)

	r.Dispatch(context.Background(), s, makePacket(t, 6, "msg", nil))
	assert.Equal(t, 2, callCount)
}

func TestRouter_Dispatch_ZeroSeqAlwaysAccepted(t *testing.T) {
	r := NewRouter(nil)
	var callCount int
	r.On("msg", func(context.Context, *Session, *Packet) error {
		callCount++
		return nil
	})
	s := newSession()
	for i := 0; i < 3; i++ {
		r.Dispatch(context.Background(), s, makePacket(t, 0, "msg", nil))
	}
	assert.Equal(t, 3, callCount)
	assert.Equal(t, uint64(0), s.LastSeq)
}

func TestSession_FilterAndClose(t *testing.T) {
	s := newSession()
	assert.True(t, s.Wants(`{"type":"job_created"}`))
	s.SetFilter(map[string]bool{"tile_changed": true})
	assert.False(t, s.Wants(`{"type":"job_created"}`))
	assert.True(t, s.Wants(`{"type":"tile_changed"}`))

	s.Close()
	s.Close()
	assert.True(t, s.IsClosed())
	s.SendRaw([]byte("x"))
	assert.Empty(t, s.SendChan)
}

func TestRouter_TypesSorted(t *testing.T) {
	r := NewRouter(nil)
	noop := func(context.Context, *Session, *Packet) error { return nil }
	r.On("tile", noop)
	r.On("build", noop)
	r.On("ping", noop)
	assert.Equal(t, []string{"build", "ping", "tile"}, r.Types())
}
