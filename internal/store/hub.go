package store

import (
	"context"
	"sync"
)

// ChangeHub is an in-process Notifier. It serves two jobs: broadcast
// between contexts living in the same process (tests, single-binary
// deployments) and the notification side of backends that have no native
// pub/sub, such as the Mongo KV.
type ChangeHub struct {
	mu     sync.RWMutex
	subs   map[int64]*hubSub
	nextID int64
}

type hubSub struct {
	topics map[string]bool
	ch     chan string
}

// NewChangeHub creates an empty hub.
func NewChangeHub() *ChangeHub {
	return &ChangeHub{subs: make(map[int64]*hubSub)}
}

// Notify delivers the topic to every subscription that asked for it.
// Delivery is best-effort and never blocks the writer: a subscriber whose
// buffer is full simply misses this wakeup and catches up on its next tick.
func (h *ChangeHub) Notify(_ context.Context, topic string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- topic:
		default:
		}
	}
	return nil
}

// Subscribe registers interest in the given topics and returns the delivery
// channel plus a cancel func that unregisters and closes it.
func (h *ChangeHub) Subscribe(_ context.Context, topics ...string) (<-chan string, func(), error) {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	sub := &hubSub{topics: set, ch: make(chan string, 16)}
	h.subs[id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if s, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel, nil
}
