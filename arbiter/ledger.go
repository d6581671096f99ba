package arbiter

import "sync"

// Feedback is the auditory cue chosen for a score change.
type Feedback int

const (
	FeedbackNone Feedback = iota
	FeedbackReward
	FeedbackPenalty
	FeedbackAlert
)

func (f Feedback) String() string {
	switch f {
	case FeedbackReward:
		return "reward"
	case FeedbackPenalty:
		return "penalty"
	case FeedbackAlert:
		return "alert"
	default:
		return "none"
	}
}

// Ledger is the running score. ScoreEvent is its only mutation.
type Ledger struct {
	mu sync.Mutex

	total  float64
	deltas []float64

	feedback func(kind Feedback, delta float64)
	onChange func(total float64)
}

// NewLedger creates a ledger. feedback, which may be nil, plays the cue
// selected for each score event.
func NewLedger(feedback func(kind Feedback, delta float64)) *Ledger {
	return &Ledger{feedback: feedback}
}

// OnChange registers a hook receiving the new total after every score event,
// typically a score display.
func (l *Ledger) OnChange(fn func(total float64)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.onChange = fn
}

// ScoreEvent applies delta and selects the matching feedback in one step.
// An alert overrides the reward/penalty cue.
func (l *Ledger) ScoreEvent(delta float64, alert bool) Feedback {
	l.mu.Lock()
	l.total += delta
	l.deltas = append(l.deltas, delta)
	total := l.total
	feedback, onChange := l.feedback, l.onChange
	l.mu.Unlock()

	kind := FeedbackNone
	switch {
	case alert:
		kind = FeedbackAlert
	case delta > 0:
		kind = FeedbackReward
	case delta < 0:
		kind = FeedbackPenalty
	}

	if feedback != nil && kind != FeedbackNone {
		feedback(kind, delta)
	}
	if onChange != nil {
		onChange(total)
	}
	return kind
}

func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.total
}

// Events returns every committed delta in order.
func (l *Ledger) Events() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]float64(nil), l.deltas...)
}
