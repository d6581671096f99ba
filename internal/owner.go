package internal

import (
	"iter"

	"github.com/google/uuid"
)

// Owner scopes the lifetime of timers, tasks, watchers and cleanups.
// Disposing an owner releases everything created under it, children first.
type Owner struct {
	ID string

	rt *Runtime

	// cleanup functions to be called when the owner is disposed
	cleanups []func()

	// panic handlers
	catchers []func(any)

	timers map[*timer]struct{}
	tasks  map[*Task]struct{}

	disposed bool

	parent       *Owner
	prevSibling  *Owner
	nextSibling  *Owner
	childrenHead *Owner
}

func (r *Runtime) newOwner(parent *Owner) *Owner {
	o := &Owner{
		ID:       uuid.NewString(),
		rt:       r,
		cleanups: make([]func(), 0),
		timers:   make(map[*timer]struct{}),
		tasks:    make(map[*Task]struct{}),
	}
	if parent != nil {
		parent.AddChild(o)
	}
	return o
}

// NewOwner creates an owner nested under the current one (the root owner
// outside of any task or Run call).
func (r *Runtime) NewOwner() *Owner {
	r.section.enter()
	defer r.section.leave()

	return r.newOwner(r.tracker.CurrentOwner(r.root))
}

// Run calls fn with o as the current owner. Panics are handed to o's catchers.
func (o *Owner) Run(fn func()) {
	r := o.rt
	r.section.enter()
	defer r.section.leave()

	r.protect(o, func() {
		r.tracker.RunWithOwner(o, fn)
	})
}

func (parent *Owner) AddChild(child *Owner) {
	child.parent = parent
	child.prevSibling = nil
	child.nextSibling = parent.childrenHead

	if parent.childrenHead != nil {
		parent.childrenHead.prevSibling = child
	}

	parent.childrenHead = child
}

func (parent *Owner) removeChild(child *Owner) {
	if child.prevSibling != nil {
		child.prevSibling.nextSibling = child.nextSibling
	} else if parent.childrenHead == child {
		parent.childrenHead = child.nextSibling
	}
	if child.nextSibling != nil {
		child.nextSibling.prevSibling = child.prevSibling
	}

	child.parent = nil
	child.prevSibling = nil
	child.nextSibling = nil
}

func (n *Owner) Children() iter.Seq[*Owner] {
	return func(yield func(*Owner) bool) {
		child := n.childrenHead

		for child != nil {
			next := child.nextSibling
			if !yield(child) {
				return
			}

			child = next
		}
	}
}

// Dispose cancels the owner's tasks and timers, runs its cleanups and detaches
// it from its parent. Calling it twice is a no-op.
func (n *Owner) Dispose() {
	r := n.rt
	r.section.enter()
	defer r.section.leave()

	if n.disposed {
		return
	}
	n.disposed = true

	n.DisposeChildren()

	for t := range n.tasks {
		t.cancel()
	}

	for t := range n.timers {
		r.cancelTimer(t)
	}

	for i := 0; i < len(n.cleanups); i++ {
		r.protect(n.parent, n.cleanups[i])
	}
	n.cleanups = nil

	if n.parent != nil {
		n.parent.removeChild(n)
	}
}

func (n *Owner) DisposeChildren() {
	for child := range n.Children() {
		child.Dispose()
	}
	n.childrenHead = nil
}

func (n *Owner) Disposed() bool {
	return n.disposed
}

func (n *Owner) OnCleanup(fn func()) {
	n.rt.section.enter()
	defer n.rt.section.leave()

	if n.disposed {
		n.rt.protect(n.parent, fn)
		return
	}
	n.cleanups = append(n.cleanups, fn)
}

func (n *Owner) OnError(fn func(any)) {
	n.rt.section.enter()
	defer n.rt.section.leave()

	n.catchers = append(n.catchers, fn)
}

// handle walks up the tree looking for catchers. It reports false if nobody
// took the panic.
func (n *Owner) handle(rec any) bool {
	for o := n; o != nil; o = o.parent {
		if len(o.catchers) == 0 {
			continue
		}

		for _, catcher := range o.catchers {
			catcher(rec)
		}
		return true
	}
	return false
}
