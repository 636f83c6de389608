// Package feed turns backend row-change notifications into refreshed views.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Op is the kind of row change. OpAll matches every change in subscriptions.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpAll    Op = "*"
	// OpRefresh means changes to the table may have been missed; every
	// subscription on the table matches it.
	OpRefresh Op = "REFRESH"
)

// Event is one row change on a watched table. Row holds the new row, or the old one on DELETE.
type Event struct {
	Table string                 `json:"table"`
	Op    Op                     `json:"op"`
	Row   map[string]interface{} `json:"row"`
}

// Topic selects the events a view depends on: a table, an optional op and an optional column=value filter.
type Topic struct {
	Table  string
	Op     Op
	Column string
	Value  string
}

func (t Topic) String() string {
	s := t.Table
	if t.Op != "" && t.Op != OpAll {
		s += ":" + string(t.Op)
	}
	if t.Column != "" {
		s += "?" + t.Column + "=eq." + t.Value
	}
	return s
}

// Matches reports whether ev falls under the topic.
func (t Topic) Matches(ev Event) bool {
	if t.Table != ev.Table {
		return false
	}
	if ev.Op == OpRefresh {
		return true
	}
	if t.Op != "" && t.Op != OpAll && t.Op != ev.Op {
		return false
	}
	if t.Column == "" {
		return true
	}
	v, ok := ev.Row[t.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == t.Value
}

// Source produces events until ctx is done.
type Source interface {
	Listen(ctx context.Context, out chan<- Event) error
}

// Subscriber opens subscriptions; Hub implements it.
type Subscriber interface {
	Subscribe(topic Topic) (*Subscription, error)
}

var ErrHubClosed = errors.New("change feed is not running")

// subscriptionBuffer is small: a refetch covers any number of queued events.
const subscriptionBuffer = 8

// Subscription delivers matching events on C until Close is called.
type Subscription struct {
	C     <-chan Event
	topic Topic
	ch    chan Event
	hub   *Hub
	once  sync.Once
}

func (s *Subscription) Topic() Topic { return s.topic }

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub fans events from one Source out to independent subscriptions.
// Two subscribers of the same topic get two subscriptions.
type Hub struct {
	source Source

	mu      sync.Mutex
	running bool
	subs    map[*Subscription]struct{}
}

func NewHub(source Source) *Hub {
	return &Hub{source: source, subs: make(map[*Subscription]struct{})}
}

// Run listens to the source until ctx is done or the source fails.
// Every open subscription is closed when Run returns.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.New("hub already running")
	}
	h.running = true
	h.mu.Unlock()

	events := make(chan Event, 64)
	errc := make(chan error, 1)
	go func() { errc <- h.source.Listen(ctx, events) }()

	defer h.shutdown()
	for {
		select {
		case ev := <-events:
			h.publish(ev)
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "listening to change feed")
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Hub) Subscribe(topic Topic) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil, ErrHubClosed
	}
	ch := make(chan Event, subscriptionBuffer)
	s := &Subscription{C: ch, topic: topic, ch: ch, hub: h}
	h.subs[s] = struct{}{}
	return s, nil
}

func (h *Hub) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Len counts open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !s.topic.Matches(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default: // subscriber is behind; a refetch is already pending
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}
