package trial

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T) (*Engine, *ManualClock) {
	t.Helper()

	clock := NewManualClock()
	e := New(WithClock(clock), WithLogger(quietLogger()))
	t.Cleanup(e.Close)

	return e, clock
}

// stepAt moves the clock to at and runs one frame.
func stepAt(t *testing.T, e *Engine, clock *ManualClock, at time.Duration) {
	t.Helper()

	clock.Set(at)
	if err := e.Step(); err != nil {
		t.Fatalf("step at %v: %v", at, err)
	}
}

const ms = time.Millisecond
