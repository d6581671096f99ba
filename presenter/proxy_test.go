package presenter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast(t *testing.T) {
	e, clock := newEngine(t)
	left, right := &screen{}, &screen{}
	targets := []Presenter{
		newMessage(e, left, Config{LockDuration: time.Minute}),
		newMessage(e, right, Config{LockDuration: time.Minute}),
	}
	p := newMessage(e, NewBroadcast(targets...), Config{LockDuration: time.Second})

	require.True(t, p.Submit("a"))
	assert.False(t, p.Submit("b"), "the proxy keeps its own lock")

	clock.Set(2 * time.Second)
	require.True(t, p.Submit("b"), "targets are unlocked by the proxy")

	assert.Equal(t, []string{"show a", "show b"}, left.log)
	assert.Equal(t, []string{"show a", "show b"}, right.log)

	p.Clear()
	assert.Equal(t, []string{"show a", "show b", "hide b"}, left.log)
	assert.Equal(t, []string{"show a", "show b", "hide b"}, right.log)

	p.Precache("c")
	assert.Equal(t, "cache c", left.log[len(left.log)-1])
	assert.Equal(t, "cache c", right.log[len(right.log)-1])
}

func TestSubstitute(t *testing.T) {
	t.Run("replaces messages with a random alternative", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		table := map[string][]string{"cue": {"red", "green", "blue"}}
		sub := NewSubstitute(newMessage(e, s, DefaultConfig()), table, rand.New(rand.NewPCG(1, 2)))
		p := newMessage(e, sub, DefaultConfig())

		seen := map[string]bool{}
		for i := range 60 {
			clock.Set(time.Duration(i+1) * ms)
			require.True(t, p.Submit("cue"))
			last := s.log[len(s.log)-1]
			assert.Contains(t, []string{"show red", "show green", "show blue"}, last)
			seen[last] = true
		}
		assert.Len(t, seen, 3)
	})

	t.Run("messages without alternatives pass through", func(t *testing.T) {
		e, _ := newEngine(t)
		s := &screen{}
		sub := NewSubstitute(newMessage(e, s, DefaultConfig()), nil, nil)
		p := newMessage(e, sub, DefaultConfig())

		require.True(t, p.Submit("plain"))
		assert.Equal(t, []string{"show plain"}, s.log)
	})

	t.Run("precache warms every alternative", func(t *testing.T) {
		e, _ := newEngine(t)
		s := &screen{}
		table := map[string][]string{"cue": {"red", "green"}}
		p := newMessage(e, NewSubstitute(newMessage(e, s, DefaultConfig()), table, nil), DefaultConfig())

		p.Precache("cue")
		p.Precache("other")
		assert.Equal(t, []string{"cache red", "cache green", "cache other"}, s.log)
	})
}

func TestScroll(t *testing.T) {
	t.Run("keeps the last lines visible", func(t *testing.T) {
		e, clock := newEngine(t)
		s := &screen{}
		scroll, err := NewScroll(newMessage(e, s, DefaultConfig()), 2)
		require.NoError(t, err)
		p := newMessage(e, scroll, DefaultConfig())

		for i, line := range []string{"one", "two", "three"} {
			clock.Set(time.Duration(i+1) * ms)
			require.True(t, p.Submit(line))
		}

		assert.Equal(t, []string{"two", "three"}, scroll.Visible())
		assert.Equal(t, []string{"one", "two", "three"}, scroll.History())
		assert.Equal(t, "show two\nthree", s.log[len(s.log)-1])

		p.Clear()
		assert.Empty(t, scroll.Visible())
		assert.Len(t, scroll.History(), 3)
	})

	t.Run("needs at least one line", func(t *testing.T) {
		e, _ := newEngine(t)
		_, err := NewScroll(newMessage(e, &screen{}, DefaultConfig()), 0)
		assert.Error(t, err)
	})
}
