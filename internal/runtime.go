package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

var (
	// ErrReentrantStep is returned when Step is called from inside a step.
	ErrReentrantStep = errors.New("trial: step called from within a step")

	// ErrClosed is returned by Step once the runtime has been closed.
	ErrClosed = errors.New("trial: runtime is closed")
)

// PanicError wraps a value recovered at the step boundary.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type Runtime struct {
	section section

	clock  Clock
	logger *slog.Logger

	timers  *TimerQueue
	ingress *IngressQueue
	bus     *EventBus
	tracker *Tracker

	root *Owner

	// frame time, only meaningful while stepping
	frame    time.Duration
	stepping bool
	steps    uint64
	closed   bool
}

func NewRuntime(clock Clock, logger *slog.Logger) *Runtime {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtime{
		clock:   clock,
		logger:  logger.With("component", "scheduler"),
		timers:  NewTimerQueue(),
		ingress: NewIngressQueue(),
		bus:     NewEventBus(),
		tracker: NewTracker(),
	}
	r.root = r.newOwner(nil)
	return r
}

// Now is the frame time while a step runs and the clock's reading otherwise.
func (r *Runtime) Now() time.Duration {
	if r.section.held() && r.stepping {
		return r.frame
	}
	return r.clock.Now()
}

func (r *Runtime) Root() *Owner {
	return r.root
}

func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

func (r *Runtime) currentOwner() *Owner {
	return r.tracker.CurrentOwner(r.root)
}

// protect runs fn and keeps a panic from escaping the step.
func (r *Runtime) protect(o *Owner, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.report(o, rec)
		}
	}()

	fn()
}

func (r *Runtime) report(o *Owner, rec any) {
	if o != nil && o.handle(rec) {
		return
	}

	r.logger.Error("recovered panic in scheduled callback",
		"error", &PanicError{Value: rec},
		"stack", string(debug.Stack()),
	)
}

func (r *Runtime) schedule(o *Owner, t *timer) Handle {
	if o == nil || o.disposed {
		if o != nil {
			r.logger.Debug("timer scheduled on disposed owner dropped", "owner", o.ID)
		}
		return Handle{}
	}

	t.owner = o
	t.index = -1
	o.timers[t] = struct{}{}
	r.timers.Insert(t)
	return Handle{t: t}
}

// ScheduleOnce runs fn once, at the first step at least delay after now.
func (r *Runtime) ScheduleOnce(delay time.Duration, fn func()) Handle {
	r.section.enter()
	defer r.section.leave()

	return r.schedule(r.currentOwner(), &timer{
		when: r.Now() + max(delay, 0),
		fn:   fn,
	})
}

// ScheduleRecurring runs fn after each delay drawn from the provider until fn
// returns false or the handle is cancelled.
func (r *Runtime) ScheduleRecurring(delay Provider, fn func() bool) Handle {
	r.section.enter()
	defer r.section.leave()

	return r.schedule(r.currentOwner(), &timer{
		when:  r.Now() + max(delay(), 0),
		tick:  fn,
		delay: delay,
	})
}

// Cancel is idempotent and may be called from any goroutine or from inside
// the callback being cancelled.
func (r *Runtime) Cancel(h Handle) {
	if h.t == nil {
		return
	}

	r.section.enter()
	defer r.section.leave()

	r.cancelTimer(h.t)
}

func (r *Runtime) cancelTimer(t *timer) bool {
	if t.retired {
		return false
	}
	t.retired = true

	pending := t.index >= 0
	r.timers.Remove(t)
	if t.owner != nil {
		delete(t.owner.timers, t)
	}
	return pending
}

// AfterFunc is ScheduleOnce behind a stoppable Timer.
func (r *Runtime) AfterFunc(delay time.Duration, fn func()) *Timer {
	return &Timer{rt: r, h: r.ScheduleOnce(delay, fn)}
}

// Emit queues a named event for delivery at the next step. Safe from any goroutine.
func (r *Runtime) Emit(name string) {
	r.ingress.Push(func() {
		r.dispatch(name)
	})
}

// Post queues fn to run inside the next step. Safe from any goroutine.
func (r *Runtime) Post(fn func()) {
	r.ingress.Push(func() {
		r.protect(r.root, fn)
	})
}

// Dispatch delivers a named event right away.
func (r *Runtime) Dispatch(name string) {
	r.section.enter()
	defer r.section.leave()

	r.dispatch(name)
}

func (r *Runtime) dispatch(name string) {
	r.bus.Publish(name, r.Now(), func(o *Owner, fn func()) {
		r.protect(o, func() { r.tracker.RunWithOwner(o, fn) })
	})
}

// Pending reports the number of live timers.
func (r *Runtime) Pending() int {
	r.section.enter()
	defer r.section.leave()

	return r.timers.Len()
}

// Close disposes every owner, which cancels all tasks and timers.
func (r *Runtime) Close() {
	r.section.enter()
	defer r.section.leave()

	if r.closed {
		return
	}
	r.closed = true
	r.root.Dispose()
}

// Handle identifies a scheduled timer. The zero value is valid and inert.
type Handle struct {
	t *timer
}

// Pending reports whether the timer is still waiting to fire.
func (h Handle) Pending() bool {
	return h.t != nil && !h.t.retired && h.t.index >= 0
}

type Timer struct {
	rt *Runtime
	h  Handle
}

// Stop cancels the timer and reports whether it was still pending.
func (t *Timer) Stop() bool {
	if t.h.t == nil {
		return false
	}

	t.rt.section.enter()
	defer t.rt.section.leave()

	return t.rt.cancelTimer(t.h.t)
}
