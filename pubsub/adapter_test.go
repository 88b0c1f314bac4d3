package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LocalWithoutRedisAddr(t *testing.T) {
	ps, err := New(Config{LocalBuf: 8})
	require.NoError(t, err)
	defer ps.Close()

	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, EventsChannel)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, EventsChannel, `{"type":"tick"}`))
	select {
	case msg := <-ch:
		assert.Equal(t, EventsChannel, msg.Channel)
		assert.JSONEq(t, `{"type":"tick"}`, msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestLocalAdapter_CancelClosesOutput(t *testing.T) {
	ps := NewLocal(0)
	ch, cancel, err := ps.Subscribe(context.Background(), "a")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output channel not closed")
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	_, err := New(Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
