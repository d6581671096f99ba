package presenter

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/trial"
)

const ms = time.Millisecond

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T) (*trial.Engine, *trial.ManualClock) {
	t.Helper()

	clock := trial.NewManualClock()
	e := trial.New(trial.WithClock(clock), trial.WithLogger(quietLogger()))
	t.Cleanup(e.Close)

	return e, clock
}

func stepAt(t *testing.T, e *trial.Engine, clock *trial.ManualClock, at time.Duration) {
	t.Helper()

	clock.Set(at)
	require.NoError(t, e.Step())
}

// screen records what it is asked to show, hide and precache.
type screen struct {
	log  []string
	fail error
}

func (s *screen) Present(msg string) (Handle, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.log = append(s.log, "show "+msg)
	return HandleFunc(func() { s.log = append(s.log, "hide "+msg) }), nil
}

func (s *screen) Precache(msg string) error {
	s.log = append(s.log, "cache "+msg)
	return nil
}

func newMessage(e *trial.Engine, r Renderer, cfg Config) *Message {
	return New(e, r, cfg, quietLogger())
}

func TestMessage(t *testing.T) {
	t.Run("lock refuses submits until it expires", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, Config{LockDuration: 2 * time.Second})

		assert.True(t, p.Submit("a"))

		clock.Set(time.Second)
		assert.False(t, p.Submit("b"))
		assert.True(t, p.Locked())

		clock.Set(2100 * ms)
		assert.True(t, p.Submit("c"))

		assert.Equal(t, []string{"show a", "show c"}, s.log)
	})

	t.Run("still locked exactly at the lock deadline", func(t *testing.T) {
		e, clock := newEngine(t)
		p := newMessage(e, &screen{}, Config{LockDuration: 2 * time.Second})

		require.True(t, p.Submit("a"))

		clock.Set(2 * time.Second)
		assert.False(t, p.Submit("b"))

		clock.Set(2*time.Second + ms)
		assert.True(t, p.Submit("b"))
	})

	t.Run("zero lock still refuses within the same instant", func(t *testing.T) {
		e, clock := newEngine(t)
		p := newMessage(e, &screen{}, DefaultConfig())

		require.True(t, p.Submit("a"))
		assert.False(t, p.Submit("b"))

		clock.Set(ms)
		assert.True(t, p.Submit("b"))
	})

	t.Run("per submit lock override", func(t *testing.T) {
		e, clock := newEngine(t)
		p := newMessage(e, &screen{}, Config{LockDuration: time.Second})

		require.True(t, p.Submit("a", WithLock(5*time.Second)))
		assert.Equal(t, 5*time.Second, p.LockedUntil())

		clock.Set(2 * time.Second)
		assert.False(t, p.Submit("b"))
	})

	t.Run("unlock accepts without clearing", func(t *testing.T) {
		e, _ := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, Config{LockDuration: time.Minute})

		require.True(t, p.Submit("a"))
		p.Unlock()
		assert.True(t, p.Submit("b"))

		assert.Equal(t, []string{"show a", "show b"}, s.log)
	})

	t.Run("clear hides what is shown and unlocks", func(t *testing.T) {
		e, _ := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, Config{LockDuration: time.Minute})

		require.True(t, p.Submit("a"))
		p.Unlock()
		require.True(t, p.Submit("b"))

		p.Clear()
		assert.False(t, p.Locked())
		assert.Equal(t, []string{"show a", "show b", "hide b"}, s.log)

		p.Clear()
		assert.Len(t, s.log, 3)
	})

	t.Run("only the latest presentation is kept", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, DefaultConfig())

		for i := range 50 {
			clock.Set(time.Duration(i+1) * ms)
			require.True(t, p.Submit("a"))
		}

		p.Clear()
		hides := 0
		for _, line := range s.log {
			if line == "hide a" {
				hides++
			}
		}
		assert.Equal(t, 1, hides)
	})

	t.Run("auto clear after the configured delay", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, Config{LockDuration: 5 * time.Second, ClearAfter: time.Second})

		require.True(t, p.Submit("a"))
		at, ok := p.ClearScheduled()
		assert.True(t, ok)
		assert.Equal(t, time.Second, at)

		stepAt(t, e, clock, 999*ms)
		assert.Equal(t, []string{"show a"}, s.log)

		stepAt(t, e, clock, time.Second)
		assert.Equal(t, []string{"show a", "hide a"}, s.log)
		assert.False(t, p.Locked(), "auto clear unlocks")

		_, ok = p.ClearScheduled()
		assert.False(t, ok)
	})

	t.Run("a later submit supersedes the pending auto clear", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, Config{ClearAfter: time.Second})

		require.True(t, p.Submit("a"))
		stepAt(t, e, clock, 500*ms)
		require.True(t, p.Submit("b"))

		stepAt(t, e, clock, time.Second)
		assert.Equal(t, []string{"show a", "show b"}, s.log)

		stepAt(t, e, clock, 1500*ms)
		assert.Equal(t, []string{"show a", "show b", "hide b"}, s.log)

		stepAt(t, e, clock, 3*time.Second)
		assert.Len(t, s.log, 3)
	})

	t.Run("auto clear outlives the task that submitted", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, DefaultConfig())

		task := e.Launch("greeting", trial.ModuleFunc(func(task *trial.Task) {
			p.Submit("hello", WithClearAfter(time.Second))
			task.Sleep(200 * ms)
		}))

		stepAt(t, e, clock, 200*ms)
		require.True(t, task.Finished())

		stepAt(t, e, clock, 2*time.Second)
		assert.Equal(t, []string{"show hello", "hide hello"}, s.log)

		_, pending := p.ClearScheduled()
		assert.False(t, pending)
	})

	t.Run("disposing the presenter scope drops the pending clear", func(t *testing.T) {
		e, _ := newEngine(t)
		scope := e.NewScope()
		p := New(scope, &screen{}, Config{ClearAfter: time.Second}, quietLogger())

		require.True(t, p.Submit("a"))
		scope.Dispose()

		_, pending := p.ClearScheduled()
		assert.False(t, pending)
	})

	t.Run("explicit clear cancels the pending auto clear", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, Config{ClearAfter: time.Second})

		require.True(t, p.Submit("a"))
		p.Clear()

		stepAt(t, e, clock, 100*ms)
		require.True(t, p.Submit("b", WithClearAfter(0)))

		stepAt(t, e, clock, 2*time.Second)
		assert.Equal(t, []string{"show a", "hide a", "show b"}, s.log)
	})

	t.Run("renderer failure still locks", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{fail: errors.New("no display")}
		p := newMessage(e, s, Config{LockDuration: time.Second})

		assert.True(t, p.Submit("a"))

		clock.Set(500 * ms)
		assert.False(t, p.Submit("b"))
		assert.Empty(t, s.log)
	})

	t.Run("precache reaches the renderer", func(t *testing.T) {
		e, _ := newEngine(t)
		s := &screen{}
		p := newMessage(e, s, DefaultConfig())

		p.Precache("a")
		assert.Equal(t, []string{"cache a"}, s.log)

		plain := newMessage(e, RendererFunc(func(string) (Handle, error) { return nil, nil }), DefaultConfig())
		plain.Precache("a")
	})
}

func TestSubmitWait(t *testing.T) {
	e, clock := newEngine(t)
	s := &screen{}
	p := newMessage(e, s, Config{LockDuration: 2 * time.Second})

	require.True(t, p.Submit("a"))

	var acceptedAt time.Duration
	task := e.Go(nil, func(task *trial.Task) {
		SubmitWait(task, p, "b", 100*ms)
		acceptedAt = e.Now()
	})

	for at := 100 * ms; at <= 3*time.Second && !task.Finished(); at += 100 * ms {
		stepAt(t, e, clock, at)
	}

	require.True(t, task.Finished())
	assert.Equal(t, 2100*ms, acceptedAt)
	assert.Equal(t, []string{"show a", "show b"}, s.log)
}
