package presenter

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// forward pushes msg to a target presenter, overriding its lock and leaving
// clearing to the wrapping presenter.
func forward(target Presenter, msg string) {
	target.Unlock()
	target.Submit(msg, WithClearAfter(0))
}

// Broadcast renders every message on all of its targets.
type Broadcast struct {
	targets []Presenter
}

func NewBroadcast(targets ...Presenter) *Broadcast {
	return &Broadcast{targets: targets}
}

func (b *Broadcast) Present(msg string) (Handle, error) {
	for _, t := range b.targets {
		forward(t, msg)
	}

	return HandleFunc(func() {
		for _, t := range b.targets {
			t.Clear()
		}
	}), nil
}

func (b *Broadcast) Precache(msg string) error {
	for _, t := range b.targets {
		t.Precache(msg)
	}
	return nil
}

// Substitute replaces a message with a random alternative from its table
// before forwarding it. Messages without alternatives pass through.
type Substitute struct {
	target Presenter
	table  map[string][]string
	rng    *rand.Rand
}

func NewSubstitute(target Presenter, table map[string][]string, rng *rand.Rand) *Substitute {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Substitute{target: target, table: table, rng: rng}
}

func (s *Substitute) pick(msg string) string {
	alts := s.table[msg]
	if len(alts) == 0 {
		return msg
	}
	return alts[s.rng.IntN(len(alts))]
}

func (s *Substitute) Present(msg string) (Handle, error) {
	forward(s.target, s.pick(msg))

	return HandleFunc(s.target.Clear), nil
}

// Precache warms every alternative the message could turn into.
func (s *Substitute) Precache(msg string) error {
	alts := s.table[msg]
	if len(alts) == 0 {
		s.target.Precache(msg)
		return nil
	}
	for _, alt := range alts {
		s.target.Precache(alt)
	}
	return nil
}

// Scroll shows messages as lines of a scrolling text, keeping the full history.
type Scroll struct {
	target  Presenter
	lines   int
	visible []string
	history []string
}

func NewScroll(target Presenter, lines int) (*Scroll, error) {
	if lines <= 0 {
		return nil, errors.New("presenter: scroll needs at least one line")
	}
	return &Scroll{target: target, lines: lines}, nil
}

func (s *Scroll) Present(msg string) (Handle, error) {
	s.history = append(s.history, msg)
	s.visible = append(s.visible, msg)
	if over := len(s.visible) - s.lines; over > 0 {
		s.visible = append(s.visible[:0:0], s.visible[over:]...)
	}

	forward(s.target, strings.Join(s.visible, "\n"))

	return HandleFunc(func() {
		if s.visible == nil {
			return
		}
		s.visible = nil
		s.target.Clear()
	}), nil
}

// Visible returns the lines currently on screen, oldest first.
func (s *Scroll) Visible() []string {
	return append([]string(nil), s.visible...)
}

// History returns every line ever presented.
func (s *Scroll) History() []string {
	return append([]string(nil), s.history...)
}
