// Package presenter implements the rate-limiting lock/clear contract shared by
// every message presenter, and proxies that transform or fan out messages
// while keeping that contract.
package presenter

import (
	"time"

	"github.com/AnatoleLucet/trial"
)

// DefaultRetry is the SubmitWait polling interval used when none is given.
const DefaultRetry = 100 * time.Millisecond

// Presenter shows messages, refusing new ones while locked.
type Presenter interface {
	// Submit presents msg unless the presenter is locked. A false return is
	// backpressure, not an error: retry later or drop the message.
	Submit(msg string, opts ...SubmitOption) bool
	// Clear removes what is shown and unlocks.
	Clear()
	// Unlock accepts submissions again without removing what is shown.
	Unlock()
	// Precache prepares msg ahead of a timing-critical sequence.
	Precache(msg string)
}

// Handle is what a renderer returns for presented content.
type Handle interface {
	Destroy()
}

// Renderer is the presentation capability behind a presenter. Present
// replaces whatever the renderer showed before.
type Renderer interface {
	Present(msg string) (Handle, error)
}

// Precacher is implemented by renderers that can load resources ahead of time.
type Precacher interface {
	Precache(msg string) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(msg string) (Handle, error)

func (f RendererFunc) Present(msg string) (Handle, error) { return f(msg) }

// HandleFunc adapts a function to Handle.
type HandleFunc func()

func (f HandleFunc) Destroy() { f() }

type Config struct {
	// how long a successful submit blocks the next one
	LockDuration time.Duration `yaml:"lock_duration" env:"LOCK_DURATION"`
	// content is removed this long after a submit, never when zero
	ClearAfter time.Duration `yaml:"clear_after" env:"CLEAR_AFTER"`
	// SubmitWait polling interval
	RetryInterval time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL"`
}

func DefaultConfig() Config {
	return Config{
		LockDuration:  0,
		ClearAfter:    0,
		RetryInterval: DefaultRetry,
	}
}

type submitOptions struct {
	lock       time.Duration
	clearAfter time.Duration
}

type SubmitOption func(*submitOptions)

// WithLock overrides the presenter's default lock duration for one submit.
func WithLock(d time.Duration) SubmitOption {
	return func(o *submitOptions) { o.lock = d }
}

// WithClearAfter overrides the default auto-clear delay; zero disables it.
func WithClearAfter(d time.Duration) SubmitOption {
	return func(o *submitOptions) { o.clearAfter = d }
}

// SubmitWait keeps submitting msg, sleeping retry between attempts, until p
// accepts it.
func SubmitWait(s trial.Sleeper, p Presenter, msg string, retry time.Duration, opts ...SubmitOption) {
	if retry <= 0 {
		retry = DefaultRetry
	}

	for !p.Submit(msg, opts...) {
		s.Sleep(retry)
	}
}
