// Package marker delivers synchronization codes to recording equipment.
//
// Emission is fire-and-forget: sinks may fail, but the caller never blocks on
// them and never sees their errors.
package marker

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Code is a marker value. Integer and string codes share one representation.
type Code struct {
	s     string
	n     int
	isInt bool
}

func Int(n int) Code { return Code{s: strconv.Itoa(n), n: n, isInt: true} }

func String(s string) Code { return Code{s: s} }

func (c Code) String() string { return c.s }

// Int returns the numeric value and whether the code is numeric.
func (c Code) Int() (int, bool) { return c.n, c.isInt }

func (c Code) IsZero() bool { return c == Code{} }

// Sink is a marker transport.
type Sink interface {
	Init() error
	Send(code Code, at time.Duration) error
	Shutdown() error
}

// Clock stamps markers at emission.
type Clock interface {
	Now() time.Duration
}

// Emitter broadcasts markers to every configured sink.
type Emitter struct {
	mu sync.Mutex

	clock  Clock
	sinks  []Sink
	logger *slog.Logger

	// one warning per second at most, a dead sink would otherwise flood the log
	warn rate.Sometimes
}

func NewEmitter(clock Clock, logger *slog.Logger, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Emitter{
		clock:  clock,
		sinks:  sinks,
		logger: logger.With("component", "marker"),
		warn:   rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// Init initializes every sink. Sinks that fail are dropped with a warning; the
// joined errors are returned for the host to report.
func (e *Emitter) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	live := e.sinks[:0]
	for _, s := range e.sinks {
		if err := s.Init(); err != nil {
			e.logger.Warn("marker sink disabled", "sink", fmt.Sprintf("%T", s), "error", err)
			errs = append(errs, fmt.Errorf("init %T: %w", s, err))
			continue
		}
		live = append(live, s)
	}
	e.sinks = live
	return errors.Join(errs...)
}

// Add attaches another sink after Init. The sink must already be initialized.
func (e *Emitter) Add(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sinks = append(e.sinks, s)
}

// Emit sends code to every sink. It never blocks on a failing sink and never
// panics.
func (e *Emitter) Emit(code Code) {
	if e == nil {
		return
	}

	var at time.Duration
	if e.clock != nil {
		at = e.clock.Now()
	}

	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()

	for _, s := range sinks {
		e.send(s, code, at)
	}
}

func (e *Emitter) send(s Sink, code Code, at time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			e.warnf(s, code, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := s.Send(code, at); err != nil {
		e.warnf(s, code, err)
	}
}

func (e *Emitter) warnf(s Sink, code Code, err error) {
	e.warn.Do(func() {
		e.logger.Warn("marker not delivered",
			"sink", fmt.Sprintf("%T", s),
			"code", code.String(),
			"error", err,
		)
	})
}

// Shutdown closes every sink and returns their joined errors.
func (e *Emitter) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, s := range e.sinks {
		if err := s.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %T: %w", s, err))
		}
	}
	e.sinks = nil
	return errors.Join(errs...)
}
