// Package trial schedules timed stimuli and arbitrates responses for scripted
// experiment modules.
//
// An Engine is driven by the host's frame loop through Step. Module scripts run
// as cooperative tasks: they suspend with Sleep and WaitFor and are resumed by
// the engine, one at a time, so script code never races with timers or event
// delivery.
package trial

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/AnatoleLucet/trial/internal"
)

var (
	ErrReentrantStep = internal.ErrReentrantStep
	ErrClosed        = internal.ErrClosed
)

type (
	// Clock is a monotonic time source.
	Clock = internal.Clock
	// ManualClock is a Clock that only moves when told to.
	ManualClock = internal.ManualClock
	// Provider yields a (possibly random) delay each time it is called.
	Provider = internal.Provider
	// Handle identifies a scheduled callback.
	Handle = internal.Handle
	// Watch describes one arming of a Watcher.
	Watch = internal.Watch
	// Hit is an event observed by WaitFor.
	Hit = internal.Hit
	// PanicError wraps a panic recovered at the step boundary.
	PanicError = internal.PanicError
)

func NewManualClock() *ManualClock { return internal.NewManualClock() }

func NewSystemClock() Clock { return internal.NewSystemClock() }

// Fixed returns a Provider that always yields d.
func Fixed(d time.Duration) Provider { return internal.Fixed(d) }

// Uniform returns a Provider drawing delays uniformly from [lo, hi].
func Uniform(lo, hi time.Duration, rng *rand.Rand) Provider {
	return internal.Uniform(lo, hi, rng)
}

// Timer is a stoppable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler is the slice of the engine presenters and the arbiter depend on.
type Scheduler interface {
	Now() time.Duration
	AfterFunc(d time.Duration, fn func()) Timer
}

// Sleeper is anything that can cooperatively wait, in practice a *Task.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Scope is a Scheduler whose timers belong to a dedicated owner under the
// root, so they outlive whichever task happened to schedule them.
type Scope struct {
	e     *Engine
	owner *Owner
}

// NewScope creates a scope for a long-lived component such as a presenter or
// an arbiter. It is disposed with the engine, or earlier through Dispose.
func (e *Engine) NewScope() *Scope {
	var owner *Owner
	e.Root().Run(func() { owner = e.NewOwner() })
	return &Scope{e: e, owner: owner}
}

func (s *Scope) Now() time.Duration { return s.e.Now() }

func (s *Scope) AfterFunc(d time.Duration, fn func()) Timer {
	var t Timer
	s.owner.Run(func() { t = s.e.AfterFunc(d, fn) })
	return t
}

// OnCleanup registers fn to run when the scope is disposed and its timers
// are gone.
func (s *Scope) OnCleanup(fn func()) { s.owner.OnCleanup(fn) }

func (s *Scope) Dispose() { s.owner.Dispose() }

func (s *Scope) Owner() *Owner { return s.owner }

// Detach returns a scope of its own when s can provide one, and s otherwise.
// Components call it on the Scheduler they are given so their timers do not
// depend on the caller's task.
func Detach(s Scheduler) Scheduler {
	if e, ok := s.(interface{ NewScope() *Scope }); ok {
		return e.NewScope()
	}
	return s
}

type options struct {
	clock  Clock
	logger *slog.Logger
}

type Option func(*options)

// WithClock replaces the system clock, typically with a ManualClock in tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type Engine struct {
	rt *internal.Runtime
}

// New creates an engine. Nothing happens until the host calls Step.
func New(opts ...Option) *Engine {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &Engine{
		rt: internal.NewRuntime(o.clock, o.logger),
	}
}

// Now returns the current engine time (the frame time while a step runs).
func (e *Engine) Now() time.Duration { return e.rt.Now() }

// Step runs one frame: queued events, then due timers and the tasks they resume.
func (e *Engine) Step() error { return e.rt.Step() }

// Steps returns how many frames have run.
func (e *Engine) Steps() uint64 { return e.rt.Steps() }

// NextDeadline returns the earliest pending timer deadline.
func (e *Engine) NextDeadline() (time.Duration, bool) { return e.rt.NextDeadline() }

// Close cancels every task, timer and watcher.
func (e *Engine) Close() { e.rt.Close() }

// ScheduleOnce calls fn once, at least delay from now.
func (e *Engine) ScheduleOnce(delay time.Duration, fn func()) Handle {
	return e.rt.ScheduleOnce(delay, fn)
}

// ScheduleRecurring calls fn after every delay until it returns false.
func (e *Engine) ScheduleRecurring(delay Provider, fn func() bool) Handle {
	return e.rt.ScheduleRecurring(delay, fn)
}

// Cancel stops a scheduled callback. Cancelling twice is fine.
func (e *Engine) Cancel(h Handle) { e.rt.Cancel(h) }

func (e *Engine) AfterFunc(delay time.Duration, fn func()) Timer {
	return e.rt.AfterFunc(delay, fn)
}

// Emit queues a named event for the next step. Safe from any goroutine.
func (e *Engine) Emit(event string) { e.rt.Emit(event) }

// Dispatch delivers a named event immediately, from engine code.
func (e *Engine) Dispatch(event string) { e.rt.Dispatch(event) }

// Post queues fn to run inside the next step. Safe from any goroutine.
func (e *Engine) Post(fn func()) { e.rt.Post(fn) }

// NewWatcher creates a watcher subscribed to the given events, owned by the
// current owner.
func (e *Engine) NewWatcher(events ...string) *Watcher {
	return &Watcher{e.rt.NewWatcher(events...)}
}

// Go starts a task under owner (the current one when nil) and runs it to its
// first suspension point.
func (e *Engine) Go(owner *Owner, fn func(*Task)) *Task {
	var o *internal.Owner
	if owner != nil {
		o = owner.owner
	}

	return &Task{e.rt.Go(o, func(t *internal.Task) { fn(&Task{t}) })}
}

// NewOwner creates an owner under the current one.
func (e *Engine) NewOwner() *Owner {
	return &Owner{e.rt.NewOwner()}
}

// Root is the owner everything belongs to by default.
func (e *Engine) Root() *Owner {
	return &Owner{e.rt.Root()}
}

// Logger is the engine's logger, for components that want to share it.
func (e *Engine) Logger() *slog.Logger { return e.rt.Logger() }

type Task struct {
	task *internal.Task
}

// Sleep suspends the task for at least d.
func (t *Task) Sleep(d time.Duration) { t.task.Sleep(d) }

// WaitFor suspends until one of events arrives or timeout passes; nil means timeout.
func (t *Task) WaitFor(events []string, timeout time.Duration) []Hit {
	return t.task.WaitFor(events, timeout)
}

// Cancel abandons the task without resuming its script.
func (t *Task) Cancel() { t.task.Cancel() }

// Owner owns everything the task creates.
func (t *Task) Owner() *Owner { return &Owner{t.task.Owner()} }

func (t *Task) Done() <-chan struct{} { return t.task.Done() }

func (t *Task) Finished() bool { return t.task.Finished() }

func (t *Task) Cancelled() bool { return t.task.Cancelled() }

// Err blocks until the task is done and returns the panic that ended it, if any.
func (t *Task) Err() error { return t.task.Err() }

type Watcher struct {
	w *internal.Watcher
}

// WatchFor arms the watcher, superseding any previous arming.
func (w *Watcher) WatchFor(spec Watch) { w.w.WatchFor(spec) }

// SetDefault handles events that arrive while nothing (or nothing in time) is armed.
func (w *Watcher) SetDefault(fn func(event string, at time.Duration)) { w.w.SetDefault(fn) }

// Subscribe adds events without arming.
func (w *Watcher) Subscribe(events ...string) { w.w.Subscribe(events...) }

func (w *Watcher) Armed() bool { return w.w.Armed() }

func (w *Watcher) ArmedAt() time.Duration { return w.w.ArmedAt() }

// Close unsubscribes the watcher from every event.
func (w *Watcher) Close() { w.w.Close() }

type Owner struct {
	owner *internal.Owner
}

// ID identifies the owner in logs.
func (o *Owner) ID() string { return o.owner.ID }

// Run calls fn with this owner current, so everything fn creates belongs to it.
func (o *Owner) Run(fn func()) { o.owner.Run(fn) }

// Dispose cancels the owner's tasks and timers, closes its watchers and runs
// its cleanups, children first.
func (o *Owner) Dispose() { o.owner.Dispose() }

func (o *Owner) Disposed() bool { return o.owner.Disposed() }

// OnCleanup registers fn to run when the owner is disposed.
func (o *Owner) OnCleanup(fn func()) { o.owner.OnCleanup(fn) }

// OnError registers a handler for panics raised under this owner.
// Without one, panics are logged and the step carries on.
func (o *Owner) OnError(fn func(any)) { o.owner.OnError(fn) }
