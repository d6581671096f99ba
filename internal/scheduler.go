package internal

import "time"

// Step advances the runtime by one frame: queued events and posted work first,
// then every timer due at the frame time, in deadline then insertion order.
//
// Timers scheduled while the step runs are left for the next step, even when
// already due, so a zero-delay reschedule cannot spin a frame forever.
func (r *Runtime) Step() error {
	r.section.enter()
	defer r.section.leave()

	if r.closed {
		return ErrClosed
	}
	if r.stepping {
		return ErrReentrantStep
	}

	r.stepping = true
	r.frame = r.clock.Now()
	defer func() {
		r.stepping = false
		r.steps++
	}()

	for _, fn := range r.ingress.Drain() {
		fn()
	}

	for _, t := range r.timers.Due(r.frame) {
		r.fire(t)
	}

	return nil
}

// Steps returns the number of completed steps.
func (r *Runtime) Steps() uint64 {
	r.section.enter()
	defer r.section.leave()

	return r.steps
}

// NextDeadline reports the earliest pending timer, so a host can sleep until then.
func (r *Runtime) NextDeadline() (time.Duration, bool) {
	r.section.enter()
	defer r.section.leave()

	return r.timers.Next()
}

func (r *Runtime) fire(t *timer) {
	if t.retired {
		r.logger.Debug("skipping retired timer", "deadline", t.when)
		return
	}

	if t.tick == nil {
		delete(t.owner.timers, t)
		t.retired = true
		r.protect(t.owner, func() {
			r.tracker.RunWithOwner(t.owner, t.fn)
		})
		return
	}

	again := false
	r.protect(t.owner, func() {
		r.tracker.RunWithOwner(t.owner, func() { again = t.tick() })
	})

	if !again || t.retired || t.owner.disposed {
		delete(t.owner.timers, t)
		t.retired = true
		return
	}

	t.when = r.frame + max(t.delay(), 0)
	r.timers.Insert(t)
}
