package presenter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AnatoleLucet/trial"
)

// clearTolerance absorbs rounding when matching an auto-clear to its schedule.
const clearTolerance = time.Millisecond

// Message is the presenter every variant is built on: it owns the lock and
// auto-clear state and delegates presentation to a Renderer.
//
// It is not safe for concurrent use; call it from engine code (tasks, timer
// callbacks, watcher handlers).
type Message struct {
	sched  trial.Scheduler
	render Renderer
	cfg    Config
	logger *slog.Logger

	locked      bool
	lockedUntil time.Duration

	// what the renderer shows now, each Present replaces the previous one
	shown Handle

	// the auto-clear that is allowed to act
	clearGen   uint64
	clearArmed bool
	nextClear  time.Duration
	clearTimer trial.Timer
}

func New(sched trial.Scheduler, render Renderer, cfg Config, logger *slog.Logger) *Message {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Message{
		sched:  trial.Detach(sched),
		render: render,
		cfg:    cfg,
		logger: logger.With("component", "presenter", "renderer", fmt.Sprintf("%T", render)),
	}

	if c, ok := p.sched.(interface{ OnCleanup(func()) }); ok {
		c.OnCleanup(p.dropClear)
	}
	return p
}

func (p *Message) Submit(msg string, opts ...SubmitOption) bool {
	o := submitOptions{
		lock:       p.cfg.LockDuration,
		clearAfter: p.cfg.ClearAfter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	now := p.sched.Now()
	if p.locked && now <= p.lockedUntil {
		return false
	}

	p.present(msg)

	p.locked = true
	p.lockedUntil = now + max(o.lock, 0)

	p.clearGen++
	p.clearArmed = false
	if p.clearTimer != nil {
		p.clearTimer.Stop()
		p.clearTimer = nil
	}

	if o.clearAfter > 0 {
		gen, at := p.clearGen, now+o.clearAfter
		p.clearArmed = true
		p.nextClear = at
		p.clearTimer = p.sched.AfterFunc(o.clearAfter, func() { p.autoClear(gen, at) })
	}

	return true
}

func (p *Message) present(msg string) {
	h, err := p.render.Present(msg)
	if err != nil {
		p.logger.Warn("presentation failed", "message", msg, "error", err)
		return
	}
	if h != nil {
		p.shown = h
	}
}

// autoClear acts only if no later submit or clear has superseded it.
func (p *Message) autoClear(gen uint64, at time.Duration) {
	if !p.clearArmed || gen != p.clearGen {
		p.logger.Debug("stale auto-clear", "scheduled", at)
		return
	}
	if d := at - p.nextClear; d > clearTolerance || d < -clearTolerance {
		p.logger.Debug("stale auto-clear", "scheduled", at, "next", p.nextClear)
		return
	}

	p.clearTimer = nil
	p.Clear()
}

func (p *Message) Clear() {
	p.clearGen++
	p.clearArmed = false
	if p.clearTimer != nil {
		p.clearTimer.Stop()
		p.clearTimer = nil
	}

	if shown := p.shown; shown != nil {
		p.shown = nil
		shown.Destroy()
	}

	p.Unlock()
}

// dropClear forgets a pending auto-clear whose timer is gone.
func (p *Message) dropClear() {
	p.clearGen++
	p.clearArmed = false
	p.clearTimer = nil
}

func (p *Message) Unlock() {
	p.locked = false
	p.lockedUntil = 0
}

func (p *Message) Precache(msg string) {
	pc, ok := p.render.(Precacher)
	if !ok {
		return
	}
	if err := pc.Precache(msg); err != nil {
		p.logger.Warn("precache failed", "message", msg, "error", err)
	}
}

// Locked reports whether a submit right now would be refused.
func (p *Message) Locked() bool {
	return p.locked && p.sched.Now() <= p.lockedUntil
}

func (p *Message) LockedUntil() time.Duration {
	return p.lockedUntil
}

// ClearScheduled returns the pending auto-clear time, if any.
func (p *Message) ClearScheduled() (time.Duration, bool) {
	return p.nextClear, p.clearArmed
}
