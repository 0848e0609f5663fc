package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidEasing = errors.New("unknown easing function")
	ErrInvalidCycle  = errors.New("unknown cycle mode")
)

// Easing reshapes the normalised progress of a finite motion.
type Easing int

const (
	EaseLinear Easing = iota
	EaseQuadraticIn
	EaseQuadraticOut
	EaseQuadraticInOut
	EaseCubicIn
	EaseCubicOut
	EaseCubicInOut
)

var easingNames = [...]string{
	EaseLinear:         "linear",
	EaseQuadraticIn:    "quadratic_in",
	EaseQuadraticOut:   "quadratic_out",
	EaseQuadraticInOut: "quadratic_in_out",
	EaseCubicIn:        "cubic_in",
	EaseCubicOut:       "cubic_out",
	EaseCubicInOut:     "cubic_in_out",
}

// ParseEasing accepts the names printed by Easing.String, case-insensitive.
// "ease_in", "ease_out" and "ease_in_out" are the quadratic curves. An empty
// string selects linear.
func ParseEasing(s string) (Easing, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return EaseLinear, nil
	case "ease_in":
		return EaseQuadraticIn, nil
	case "ease_out":
		return EaseQuadraticOut, nil
	case "ease_in_out":
		return EaseQuadraticInOut, nil
	}
	for e, n := range easingNames {
		if n == name {
			return Easing(e), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidEasing)
}

func (e Easing) String() string {
	if !e.valid() {
		return fmt.Sprintf("Easing(%d)", int(e))
	}
	return easingNames[e]
}

func (e Easing) valid() bool { return e >= EaseLinear && e <= EaseCubicInOut }

// Apply maps t, clamped to [0,1], onto the curve. Every curve fixes 0 and 1.
func (e Easing) Apply(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	switch e {
	case EaseQuadraticIn:
		return t * t
	case EaseQuadraticOut:
		u := t - 1
		return 1 - u*u
	case EaseQuadraticInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		u := 2*t - 2
		return 1 - u*u/2
	case EaseCubicIn:
		return t * t * t
	case EaseCubicOut:
		u := t - 1
		return 1 + u*u*u
	case EaseCubicInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := t - 1
		return 1 + 4*u*u*u
	default:
		return t
	}
}

// CycleMode decides what a finite motion does once its duration has run.
type CycleMode int

const (
	// CycleOneShot holds the end state.
	CycleOneShot CycleMode = iota
	// CycleLoop restarts from the beginning every duration.
	CycleLoop
	// CyclePingPong runs forward then backward, one duration each way.
	CyclePingPong
)

var cycleNames = [...]string{
	CycleOneShot:  "one_shot",
	CycleLoop:     "loop",
	CyclePingPong: "ping_pong",
}

// ParseCycleMode accepts "one_shot", "loop" or "ping_pong" in any case. An
// empty string selects one_shot.
func ParseCycleMode(s string) (CycleMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return CycleOneShot, nil
	}
	for c, n := range cycleNames {
		if n == name {
			return CycleMode(c), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidCycle)
}

func (c CycleMode) String() string {
	if !c.valid() {
		return fmt.Sprintf("CycleMode(%d)", int(c))
	}
	return cycleNames[c]
}

func (c CycleMode) valid() bool { return c >= CycleOneShot && c <= CyclePingPong }

// Progression shapes how a finite motion moves through its duration. The
// zero value is a linear one-shot.
type Progression struct {
	Easing Easing
	Cycle  CycleMode
}

// ProgressOption customises the Progression of a finite motion.
type ProgressOption func(*Progression)

// WithEasing selects the easing curve.
func WithEasing(e Easing) ProgressOption {
	return func(p *Progression) { p.Easing = e }
}

// WithCycle selects the cycle mode.
func WithCycle(c CycleMode) ProgressOption {
	return func(p *Progression) { p.Cycle = c }
}

func newProgression(opts []ProgressOption) (Progression, error) {
	var p Progression
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	if !p.Easing.valid() {
		return Progression{}, fmt.Errorf("%v: %w", p.Easing, ErrInvalidEasing)
	}
	if !p.Cycle.valid() {
		return Progression{}, fmt.Errorf("%v: %w", p.Cycle, ErrInvalidCycle)
	}
	return p, nil
}

// At returns the eased progress in [0,1] at elapsed. One-shot progress is
// clamped; loop and ping-pong repeat in both directions of time.
func (p Progression) At(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	t := elapsed.Seconds() / duration.Seconds()
	switch p.Cycle {
	case CycleLoop:
		t -= math.Floor(t)
	case CyclePingPong:
		t -= 2 * math.Floor(t/2)
		if t > 1 {
			t = 2 - t
		}
	}
	return p.Easing.Apply(t)
}

// Cyclic reports whether the motion repeats.
func (p Progression) Cyclic() bool { return p.Cycle != CycleOneShot }

// Period is the repeat length for a given duration: the duration itself,
// or twice it for ping-pong.
func (p Progression) Period(duration time.Duration) time.Duration {
	if p.Cycle == CyclePingPong {
		return ClampDuration(2 * float64(duration))
	}
	return duration
}

func (p Progression) easingName() string {
	if p.Easing == EaseLinear {
		return ""
	}
	return p.Easing.String()
}

func (p Progression) cycleName() string {
	if p.Cycle == CycleOneShot {
		return ""
	}
	return p.Cycle.String()
}

// ClampDuration converts nanoseconds to a Duration, saturating at the
// representable range. NaN maps to zero.
func ClampDuration(ns float64) time.Duration {
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	default:
		return time.Duration(ns)
	}
}
