package internal

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"time"
)

// Provider yields a delay each time it is called, so recurring timers can draw
// a fresh interval from a distribution on every firing.
type Provider func() time.Duration

// Fixed returns a Provider that always yields d.
func Fixed(d time.Duration) Provider {
	return func() time.Duration { return d }
}

// Uniform returns a Provider drawing delays uniformly from [lo, hi]. A nil rng
// uses the global source.
func Uniform(lo, hi time.Duration, rng *rand.Rand) Provider {
	if hi < lo {
		lo, hi = hi, lo
	}
	// unsigned, so the full int64 range fits; offsets wrap back into [lo, hi]
	span := uint64(hi) - uint64(lo)
	draw := rand.Uint64
	drawN := rand.Uint64N
	if rng != nil {
		draw, drawN = rng.Uint64, rng.Uint64N
	}

	return func() time.Duration {
		if span == math.MaxUint64 {
			return lo + time.Duration(draw())
		}
		return lo + time.Duration(drawN(span+1))
	}
}

type timer struct {
	// insertion sequence, breaks ties between equal deadlines
	seq  uint64
	when time.Duration

	fn func()

	// set for recurring timers only
	tick  func() bool
	delay Provider

	owner *Owner

	// position in the heap, -1 once popped or removed
	index int

	// fired (one-shot), finished (recurring) or cancelled
	retired bool
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimerQueue orders pending timers by (deadline, insertion).
type TimerQueue struct {
	items timerHeap
	seq   uint64
}

func NewTimerQueue() *TimerQueue {
	return &TimerQueue{
		items: make(timerHeap, 0, 64),
	}
}

func (q *TimerQueue) Insert(t *timer) {
	q.seq++
	t.seq = q.seq
	heap.Push(&q.items, t)
}

func (q *TimerQueue) Remove(t *timer) {
	if t.index < 0 || t.index >= len(q.items) || q.items[t.index] != t {
		return
	}
	heap.Remove(&q.items, t.index)
}

// Due pops every timer whose deadline is not after now, in firing order.
func (q *TimerQueue) Due(now time.Duration) []*timer {
	var due []*timer
	for len(q.items) > 0 && q.items[0].when <= now {
		due = append(due, heap.Pop(&q.items).(*timer))
	}
	return due
}

// Next returns the earliest pending deadline.
func (q *TimerQueue) Next() (time.Duration, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].when, true
}

func (q *TimerQueue) Len() int {
	return len(q.items)
}
