package internal

import (
	"runtime"
	"runtime/debug"
	"time"
)

type taskState int

const (
	taskStarting taskState = iota
	taskRunning
	taskSuspended
	taskFinished
)

// Hit is an event observed while waiting, with the time elapsed since the wait began.
type Hit struct {
	Event   string
	Elapsed time.Duration
}

type wake struct {
	hits   []Hit
	cancel bool
}

// Task is a logical thread of script code.
//
// It runs on its own goroutine but only while the scheduler has handed it the
// critical section, so at most one task executes at any instant and tasks
// interleave only at Sleep and WaitFor. A task that loops without suspending
// stalls every other task and the host loop: each unbounded loop needs one.
type Task struct {
	rt    *Runtime
	owner *Owner

	gid   int64
	depth int

	resume chan wake
	yield  chan struct{}
	done   chan struct{}

	state     taskState
	cancelled bool
	err       error

	// abandons the current suspension (stops its timer or watcher)
	abandon func()

	// reused by every WaitFor, re-arming supersedes the previous wait
	waiter *Watcher
}

// Go starts fn as a task owned by a fresh child of owner (the current owner
// when nil) and runs it up to its first suspension point. Tasks started from
// inside a task therefore end with it unless given an owner explicitly.
func (r *Runtime) Go(owner *Owner, fn func(*Task)) *Task {
	r.section.enter()
	defer r.section.leave()

	if owner == nil {
		owner = r.currentOwner()
	}

	t := &Task{
		rt:     r,
		depth:  1,
		resume: make(chan wake),
		yield:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	if owner.disposed || r.closed {
		t.owner = owner
		t.state = taskFinished
		close(t.done)
		return t
	}
	t.owner = r.newOwner(owner)
	t.owner.tasks[t] = struct{}{}

	go t.main(fn)
	<-t.yield

	r.resumeTask(t, wake{})
	return t
}

func (t *Task) main(fn func(*Task)) {
	t.gid = getGID()
	t.yield <- struct{}{}

	defer func() {
		if rec := recover(); rec != nil {
			t.err = &PanicError{Value: rec, Stack: debug.Stack()}
			t.rt.report(t.owner, rec)
		}
		t.finish()
	}()

	if w := <-t.resume; w.cancel {
		runtime.Goexit()
	}
	fn(t)
}

func (t *Task) finish() {
	t.state = taskFinished
	delete(t.owner.tasks, t)
	close(t.done)

	// release whatever the task still owns, then hand control back
	t.owner.Dispose()
	t.yield <- struct{}{}
}

// resumeTask hands the section to t and blocks until t suspends or finishes.
func (r *Runtime) resumeTask(t *Task, w wake) {
	if t.state == taskFinished || t.state == taskRunning {
		return
	}

	restore := r.tracker.switchTo(t)
	saved := r.section.transfer(t.gid, t.depth)

	t.state = taskRunning
	t.resume <- w
	<-t.yield

	t.depth = r.section.restore(saved)
	restore()
}

// suspend yields control back to whoever resumed the task.
func (t *Task) suspend() wake {
	if t.cancelled {
		runtime.Goexit()
	}

	t.state = taskSuspended
	t.yield <- struct{}{}

	w := <-t.resume
	if w.cancel {
		runtime.Goexit()
	}
	return w
}

func (t *Task) mustBeCurrent() {
	if t.rt.tracker.CurrentTask() != t || !t.rt.section.held() {
		panic("trial: task suspended from outside its own goroutine")
	}
}

// Sleep suspends the task for at least d of scheduler time.
func (t *Task) Sleep(d time.Duration) {
	t.mustBeCurrent()

	h := t.rt.schedule(t.owner, &timer{
		when: t.rt.Now() + max(d, 0),
		fn:   func() { t.rt.resumeTask(t, wake{}) },
	})
	t.abandon = func() { t.rt.Cancel(h) }
	defer func() { t.abandon = nil }()

	t.suspend()
}

// WaitFor suspends until one of the named events arrives or timeout passes.
// It returns the first event with its latency, or nil on timeout. A
// non-positive timeout waits indefinitely.
func (t *Task) WaitFor(events []string, timeout time.Duration) []Hit {
	t.mustBeCurrent()

	if t.waiter == nil {
		t.waiter = t.rt.newWatcher(t.owner)
	}
	w := t.waiter

	start := t.rt.Now()
	w.WatchFor(Watch{
		Events:   events,
		Duration: timeout,
		Once:     true,
		Handler: func(event string, at time.Duration) {
			t.rt.resumeTask(t, wake{hits: []Hit{{Event: event, Elapsed: at - start}}})
		},
		OnTimeout: func() {
			t.rt.resumeTask(t, wake{})
		},
	})
	t.abandon = func() {
		w.disarm()
		t.rt.Cancel(w.expiry)
	}
	defer func() { t.abandon = nil }()

	return t.suspend().hits
}

// Cancel abandons the task. A suspended task never resumes its script; a
// running one (cancelling itself, or blocked resuming another task) exits at
// its next suspension point.
func (t *Task) Cancel() {
	t.rt.section.enter()
	defer t.rt.section.leave()

	t.cancel()
}

func (t *Task) cancel() {
	if t.state == taskFinished || t.cancelled {
		return
	}
	t.cancelled = true

	if t.state == taskSuspended || t.state == taskStarting {
		if t.abandon != nil {
			t.abandon()
		}
		t.rt.resumeTask(t, wake{cancel: true})
	}
}

func (t *Task) Owner() *Owner {
	return t.owner
}

// Done is closed once the task has finished, failed or been cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) Cancelled() bool {
	t.rt.section.enter()
	defer t.rt.section.leave()

	return t.cancelled
}

// Err reports the panic that ended the task, if any. Only valid after Done.
func (t *Task) Err() error {
	<-t.done
	return t.err
}
