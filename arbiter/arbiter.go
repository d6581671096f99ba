// Package arbiter decides what each response is worth.
//
// Every responder side has at most one open response window. A press inside
// an uncued window commits its reward at once; a press inside a cued window
// opens a short grace window that a second, confirming press resolves. Presses
// outside any window are penalized. All scoring goes through the Ledger and
// every transition emits exactly one marker.
package arbiter

import (
	"log/slog"
	"time"

	"github.com/AnatoleLucet/trial"
	"github.com/AnatoleLucet/trial/marker"
)

type window struct {
	open     bool
	deadline time.Duration
	reward   float64
	cued     bool
}

type grace struct {
	open     bool
	deadline time.Duration
	reward   float64
	highCost bool
}

type sideState struct {
	window window
	grace  grace
}

type Arbiter struct {
	sched   trial.Scheduler
	ledger  *Ledger
	markers *marker.Emitter
	cfg     Config
	logger  *slog.Logger

	sides    map[string]*sideState
	highCost map[string]bool

	// consecutive presses per modality, reset on a modality or side switch
	streak       map[string]int
	lastSide     string
	lastModality string
}

// New creates an arbiter. markers may be nil when no recording is attached.
// When sched is an engine, the arbiter's timeouts run in a scope of their own,
// so windows opened from a module script are still checked after it returns.
func New(sched trial.Scheduler, ledger *Ledger, markers *marker.Emitter, cfg Config, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}

	highCost := make(map[string]bool, len(cfg.HighCost))
	for _, m := range cfg.HighCost {
		highCost[m] = true
	}

	a := &Arbiter{
		sched:    trial.Detach(sched),
		ledger:   ledger,
		markers:  markers,
		cfg:      cfg,
		logger:   logger.With("component", "arbiter"),
		sides:    make(map[string]*sideState),
		highCost: highCost,
		streak:   make(map[string]int),
	}

	// windows without a timeout check left must not stay outstanding
	if c, ok := a.sched.(interface{ OnCleanup(func()) }); ok {
		c.OnCleanup(a.Reset)
	}
	return a
}

func (a *Arbiter) Ledger() *Ledger {
	return a.ledger
}

func (a *Arbiter) side(name string) *sideState {
	s, ok := a.sides[name]
	if !ok {
		s = &sideState{}
		a.sides[name] = s
	}
	return s
}

func (a *Arbiter) mark(code int) {
	a.markers.Emit(marker.Int(code))
}

// ExpectResponse opens a response window on side. A window still open there
// is closed first and, if it was a target, scored as missed.
func (a *Arbiter) ExpectResponse(reward float64, timeout time.Duration, cued bool, side string) {
	s := a.side(side)
	if s.window.open {
		a.supersede(side, s)
	}

	deadline := a.sched.Now() + timeout
	s.window = window{
		open:     true,
		deadline: deadline,
		reward:   reward,
		cued:     cued,
	}
	a.mark(a.cfg.Markers.Opened)

	a.sched.AfterFunc(timeout, func() { a.expire(side, deadline) })
}

func (a *Arbiter) supersede(side string, s *sideState) {
	missed := s.window
	s.window.open = false

	a.logger.Debug("response window superseded", "side", side, "reward", missed.reward)
	a.mark(a.cfg.Markers.Superseded)
	if missed.reward > 0 {
		a.ledger.ScoreEvent(a.cfg.MissPenalty, false)
	}
}

// Press handles a response on side made with the given input modality.
func (a *Arbiter) Press(side, modality string) {
	now := a.sched.Now()
	a.count(side, modality)

	s := a.side(side)
	switch {
	case s.grace.open && now <= s.grace.deadline:
		a.confirm(s, modality)
	case s.window.open && now <= s.window.deadline:
		a.respond(side, s, modality, now)
	default:
		a.mark(a.cfg.Markers.Unexpected)
		a.ledger.ScoreEvent(a.cfg.UnexpectedPenalty, false)
	}
}

func (a *Arbiter) count(side, modality string) {
	if side != a.lastSide || modality != a.lastModality {
		clear(a.streak)
	}
	a.streak[modality]++
	a.lastSide, a.lastModality = side, modality
}

func (a *Arbiter) respond(side string, s *sideState, modality string, now time.Duration) {
	w := s.window
	s.window.open = false

	if w.cued {
		deadline := now + a.cfg.GraceWindow
		s.grace = grace{
			open:     true,
			deadline: deadline,
			reward:   w.reward,
			highCost: a.highCost[modality],
		}
		a.mark(a.cfg.Markers.GraceOpened)
		a.sched.AfterFunc(a.cfg.GraceWindow, func() { a.graceExpire(side, deadline) })
		return
	}

	if a.streak[modality] > a.cfg.StreakThreshold {
		a.mark(a.cfg.Markers.StreakPenalty)
		a.ledger.ScoreEvent(a.cfg.StreakPenalty, true)
		return
	}

	a.mark(a.cfg.Markers.Hit)
	a.ledger.ScoreEvent(w.reward, false)
}

// confirm resolves a grace window with its second press.
func (a *Arbiter) confirm(s *sideState, modality string) {
	g := s.grace
	s.grace.open = false

	bonus := a.cfg.LowCostBonus
	if g.highCost && a.highCost[modality] {
		bonus = a.cfg.HighCostBonus
	}

	a.mark(a.cfg.Markers.GraceResolved)
	a.ledger.ScoreEvent(g.reward+bonus, false)
}

func (a *Arbiter) expire(side string, deadline time.Duration) {
	s := a.side(side)
	if !s.window.open || s.window.deadline != deadline {
		return
	}

	w := s.window
	s.window.open = false

	if w.reward > 0 {
		a.mark(a.cfg.Markers.Miss)
		a.ledger.ScoreEvent(a.cfg.MissPenalty, false)
		return
	}
	a.mark(a.cfg.Markers.Expired)
}

// graceExpire commits a cued response nobody confirmed. The high-cost bonus
// needs two presses, so the fallback is the base reward alone even when the
// first press was high-cost (g.highCost is only read by confirm).
func (a *Arbiter) graceExpire(side string, deadline time.Duration) {
	s := a.side(side)
	if !s.grace.open || s.grace.deadline != deadline {
		return
	}

	g := s.grace
	s.grace.open = false

	a.mark(a.cfg.Markers.GraceFallback)
	a.ledger.ScoreEvent(g.reward, false)
}

// Outstanding reports whether side has an open window or grace window.
func (a *Arbiter) Outstanding(side string) bool {
	s, ok := a.sides[side]
	return ok && (s.window.open || s.grace.open)
}

// Reset closes every window without scoring, e.g. when a block is aborted.
// Pending timeouts find their window gone and do nothing.
func (a *Arbiter) Reset() {
	for _, s := range a.sides {
		s.window.open = false
		s.grace.open = false
	}
	clear(a.streak)
	a.lastSide, a.lastModality = "", ""
}

// Binding routes one input event to a side and modality.
type Binding struct {
	Event    string
	Side     string
	Modality string
}

// Listen feeds the bound events into Press. The returned watcher is never
// armed, so every event lands in its default handler; close it to stop.
func (a *Arbiter) Listen(e *trial.Engine, bindings ...Binding) *trial.Watcher {
	routes := make(map[string]Binding, len(bindings))
	events := make([]string, 0, len(bindings))
	for _, b := range bindings {
		routes[b.Event] = b
		events = append(events, b.Event)
	}

	w := e.NewWatcher(events...)
	w.SetDefault(func(event string, _ time.Duration) {
		b := routes[event]
		a.Press(b.Side, b.Modality)
	})
	return w
}
