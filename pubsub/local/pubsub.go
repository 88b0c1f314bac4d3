package local

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

type subscriber struct {
	ch chan *LocalMessage
}

// LocalPubSub is an in-process fan-out pub/sub implementation. Slow
// subscribers lose messages rather than stall the publisher.
type LocalPubSub struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	bufSize     int
	dropped     atomic.Uint64
	closed      bool
}

// NewPubSub creates a new LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subscribers: make(map[string][]*subscriber),
		bufSize:     bufSize,
	}
}

// Publish sends a message to all subscribers of the given channel.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	// Sends happen under the read lock so cancel cannot close a channel mid-send.
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, s := range ps.subscribers[channel] {
		select {
		case s.ch <- msg:
		default:
			ps.dropped.Add(1)
		}
	}
	return nil
}

// Dropped returns the number of messages lost to full subscriber buffers.
func (ps *LocalPubSub) Dropped() uint64 { return ps.dropped.Load() }

// Subscribe returns a channel of messages for the given channels, and a cancel
// function. Cancel is safe to call more than once.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	ch := make(chan *LocalMessage, ps.bufSize)
	s := &subscriber{ch: ch}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		close(ch)
		return ch, func() {}, nil
	}
	for _, c := range channels {
		ps.subscribers[c] = append(ps.subscribers[c], s)
	}
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			defer ps.mu.Unlock()
			if ps.removeLocked(s, channels) {
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// removeLocked reports whether s was still registered.
func (ps *LocalPubSub) removeLocked(s *subscriber, channels []string) bool {
	found := false
	for _, c := range channels {
		list := ps.subscribers[c]
		for j, sub := range list {
			if sub == s {
				ps.subscribers[c] = append(list[:j:j], list[j+1:]...)
				found = true
				break
			}
		}
		if len(ps.subscribers[c]) == 0 {
			delete(ps.subscribers, c)
		}
	}
	return found
}

// Close drops every subscriber and closes their channels.
func (ps *LocalPubSub) Close() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return
	}
	ps.closed = true
	seen := make(map[*subscriber]bool)
	for _, list := range ps.subscribers {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				close(s.ch)
			}
		}
	}
	ps.subscribers = make(map[string][]*subscriber)
}
