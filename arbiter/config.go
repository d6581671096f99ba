package arbiter

import (
	"errors"
	"fmt"
	"time"
)

// MarkerCodes assigns a distinct marker to every arbitration transition.
type MarkerCodes struct {
	Opened        int `yaml:"opened" env:"OPENED"`
	Hit           int `yaml:"hit" env:"HIT"`
	GraceOpened   int `yaml:"grace_opened" env:"GRACE_OPENED"`
	GraceResolved int `yaml:"grace_resolved" env:"GRACE_RESOLVED"`
	GraceFallback int `yaml:"grace_fallback" env:"GRACE_FALLBACK"`
	Miss          int `yaml:"miss" env:"MISS"`
	Expired       int `yaml:"expired" env:"EXPIRED"`
	Superseded    int `yaml:"superseded" env:"SUPERSEDED"`
	Unexpected    int `yaml:"unexpected" env:"UNEXPECTED"`
	StreakPenalty int `yaml:"streak_penalty" env:"STREAK_PENALTY"`
}

func (m MarkerCodes) all() map[string]int {
	return map[string]int{
		"opened":         m.Opened,
		"hit":            m.Hit,
		"grace_opened":   m.GraceOpened,
		"grace_resolved": m.GraceResolved,
		"grace_fallback": m.GraceFallback,
		"miss":           m.Miss,
		"expired":        m.Expired,
		"superseded":     m.Superseded,
		"unexpected":     m.Unexpected,
		"streak_penalty": m.StreakPenalty,
	}
}

type Config struct {
	// applied when a target window closes without a response
	MissPenalty float64 `yaml:"miss_penalty" env:"MISS_PENALTY"`
	// applied to a press with no window open
	UnexpectedPenalty float64 `yaml:"unexpected_penalty" env:"UNEXPECTED_PENALTY"`
	// replaces the reward when one modality is overused
	StreakPenalty float64 `yaml:"streak_penalty" env:"STREAK_PENALTY"`
	// consecutive same-modality presses tolerated before StreakPenalty applies
	StreakThreshold int `yaml:"streak_threshold" env:"STREAK_THRESHOLD"`

	// how long a cued response waits for its confirming press
	GraceWindow time.Duration `yaml:"grace_window" env:"GRACE_WINDOW"`
	// added when both presses of a cued response used a high-cost modality
	HighCostBonus float64 `yaml:"high_cost_bonus" env:"HIGH_COST_BONUS"`
	// added to any other confirmed cued response
	LowCostBonus float64 `yaml:"low_cost_bonus" env:"LOW_COST_BONUS"`
	// modalities that cost the subject more effort, e.g. "touch"
	HighCost []string `yaml:"high_cost" env:"HIGH_COST" envSeparator:","`

	Markers MarkerCodes `yaml:"markers" envPrefix:"MARKER_"`
}

func DefaultConfig() Config {
	return Config{
		MissPenalty:       -1,
		UnexpectedPenalty: -1,
		StreakPenalty:     -1,
		StreakThreshold:   3,
		GraceWindow:       300 * time.Millisecond,
		HighCostBonus:     2,
		LowCostBonus:      1,
		HighCost:          []string{"touch"},
		Markers: MarkerCodes{
			Opened:        10,
			Hit:           11,
			GraceOpened:   12,
			GraceResolved: 13,
			GraceFallback: 14,
			Miss:          15,
			Expired:       16,
			Superseded:    17,
			Unexpected:    18,
			StreakPenalty: 19,
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.GraceWindow <= 0 {
		errs = append(errs, errors.New("grace_window must be positive"))
	}
	if c.StreakThreshold < 1 {
		errs = append(errs, errors.New("streak_threshold must be at least 1"))
	}

	seen := make(map[int]string)
	for name, code := range c.Markers.all() {
		if other, ok := seen[code]; ok {
			errs = append(errs, fmt.Errorf("marker code %d used by both %s and %s", code, other, name))
			continue
		}
		seen[code] = name
	}
	return errors.Join(errs...)
}
