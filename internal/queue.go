package internal

import (
	"sync"
	"time"
)

// IngressQueue is the only engine structure other goroutines may touch directly.
// Work pushed here is consumed by the next step.
type IngressQueue struct {
	mu sync.Mutex

	items []func()
	spare []func()
}

func NewIngressQueue() *IngressQueue {
	return &IngressQueue{
		items: make([]func(), 0, 16),
		spare: make([]func(), 0, 16),
	}
}

func (q *IngressQueue) Push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
}

// Drain swaps the buffers and hands back everything queued so far.
// The returned slice is only valid until the next Drain.
func (q *IngressQueue) Drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	clear(q.spare)
	q.items = q.spare[:0]
	q.spare = items
	return items
}

func (q *IngressQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

type subscription struct {
	name   string
	fn     func(name string, at time.Duration)
	owner  *Owner
	active bool
}

// EventBus fans named events out to their subscribers in subscription order.
type EventBus struct {
	subs map[string][]*subscription
}

func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string][]*subscription),
	}
}

func (b *EventBus) Subscribe(owner *Owner, name string, fn func(name string, at time.Duration)) *subscription {
	s := &subscription{name: name, fn: fn, owner: owner, active: true}
	b.subs[name] = append(b.subs[name], s)
	return s
}

func (b *EventBus) Unsubscribe(s *subscription) {
	if s == nil || !s.active {
		return
	}
	s.active = false

	subs := b.subs[s.name]
	for i, other := range subs {
		if other == s {
			b.subs[s.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[s.name]) == 0 {
		delete(b.subs, s.name)
	}
}

// Publish delivers synchronously through run, which receives the subscriber's
// owner. Subscribers removed during delivery are skipped.
func (b *EventBus) Publish(name string, at time.Duration, run func(*Owner, func())) {
	subs := append([]*subscription(nil), b.subs[name]...)
	for _, s := range subs {
		if !s.active {
			continue
		}
		run(s.owner, func() { s.fn(name, at) })
	}
}
