package internal

import "time"

// Watch describes one arming of a Watcher.
type Watch struct {
	// called for a watched event arriving in time
	Handler func(event string, at time.Duration)

	// how long the watch stays armed, non-positive means until it triggers
	Duration time.Duration

	// called once if nothing arrived before the deadline
	OnTimeout func()

	// restricts which subscribed events trigger Handler, all of them when empty
	Events []string

	// disarm after the first triggering event
	Once bool
}

// Watcher binds a transient handler to named events.
//
// Re-arming replaces the previous handler and deadline at once: a superseded
// handler never runs. Events arriving while disarmed, outside the current
// event set, or after the deadline go to the default handler.
type Watcher struct {
	rt    *Runtime
	owner *Owner

	subs map[string]*subscription

	handler   func(string, time.Duration)
	onTimeout func()
	fallback  func(string, time.Duration)
	events    map[string]bool

	armed     bool
	bounded   bool
	once      bool
	hit       bool
	armedAt   time.Duration
	expiresAt time.Duration

	// bumped on every arm, lets stale expiry checks recognize themselves
	gen    uint64
	expiry Handle

	closed bool
}

func (r *Runtime) NewWatcher(events ...string) *Watcher {
	r.section.enter()
	defer r.section.leave()

	w := r.newWatcher(r.currentOwner())
	for _, name := range events {
		w.subscribe(name)
	}
	return w
}

func (r *Runtime) newWatcher(owner *Owner) *Watcher {
	w := &Watcher{
		rt:    r,
		owner: owner,
		subs:  make(map[string]*subscription),
	}
	owner.OnCleanup(w.Close)
	return w
}

func (w *Watcher) subscribe(name string) {
	if _, ok := w.subs[name]; ok {
		return
	}
	w.subs[name] = w.rt.bus.Subscribe(w.owner, name, w.deliver)
}

// SetDefault installs the handler for events nobody is waiting for.
func (w *Watcher) SetDefault(fn func(event string, at time.Duration)) {
	w.rt.section.enter()
	defer w.rt.section.leave()

	w.fallback = fn
}

// Subscribe adds event names without arming, so the default handler sees them.
func (w *Watcher) Subscribe(events ...string) {
	w.rt.section.enter()
	defer w.rt.section.leave()

	if w.closed {
		return
	}
	for _, name := range events {
		w.subscribe(name)
	}
}

// WatchFor arms the watcher, replacing whatever was armed before.
func (w *Watcher) WatchFor(spec Watch) {
	w.rt.section.enter()
	defer w.rt.section.leave()

	if w.closed {
		w.rt.logger.Debug("watch on closed watcher ignored")
		return
	}

	w.events = nil
	if len(spec.Events) > 0 {
		w.events = make(map[string]bool, len(spec.Events))
		for _, name := range spec.Events {
			w.subscribe(name)
			w.events[name] = true
		}
	}

	now := w.rt.Now()

	w.gen++
	w.armed = true
	w.hit = false
	w.once = spec.Once
	w.handler = spec.Handler
	w.onTimeout = spec.OnTimeout
	w.armedAt = now
	w.bounded = spec.Duration > 0
	w.expiresAt = now + spec.Duration

	if w.bounded {
		gen := w.gen
		w.expiry = w.rt.schedule(w.owner, &timer{
			when: w.expiresAt,
			fn:   func() { w.expire(gen) },
		})
	}
}

func (w *Watcher) deliver(event string, at time.Duration) {
	if !w.armed || (w.events != nil && !w.events[event]) {
		w.unhandled(event, at)
		return
	}

	if w.bounded && at > w.expiresAt {
		// lost the race against the expiry check
		w.disarm()
		w.unhandled(event, at)
		return
	}

	handler := w.handler
	w.hit = true
	if w.once {
		w.disarm()
	}
	if handler != nil {
		handler(event, at)
	}
}

func (w *Watcher) unhandled(event string, at time.Duration) {
	if w.fallback != nil {
		w.fallback(event, at)
	}
}

func (w *Watcher) expire(gen uint64) {
	if !w.armed || gen != w.gen || w.rt.Now() < w.expiresAt {
		w.rt.logger.Debug("stale watcher expiry", "gen", gen, "current", w.gen)
		return
	}

	// a repeating watch that already fired does not also time out
	onTimeout := w.onTimeout
	hit := w.hit
	w.disarm()
	if onTimeout != nil && !hit {
		onTimeout()
	}
}

func (w *Watcher) disarm() {
	w.armed = false
	w.handler = nil
	w.onTimeout = nil
}

func (w *Watcher) Armed() bool {
	w.rt.section.enter()
	defer w.rt.section.leave()

	return w.armed
}

// ArmedAt is the time of the latest WatchFor.
func (w *Watcher) ArmedAt() time.Duration {
	w.rt.section.enter()
	defer w.rt.section.leave()

	return w.armedAt
}

// Close unsubscribes every event and disarms. Idempotent.
func (w *Watcher) Close() {
	w.rt.section.enter()
	defer w.rt.section.leave()

	if w.closed {
		return
	}
	w.closed = true

	w.disarm()
	w.rt.Cancel(w.expiry)
	for name, s := range w.subs {
		w.rt.bus.Unsubscribe(s)
		delete(w.subs, name)
	}
}
