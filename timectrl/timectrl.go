package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for reading the simulation clock, so consumers
// can depend on an abstraction rather than the concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Elapsed returns the simulation time since the start of the run.
	Elapsed() time.Duration
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns Now minus StartTime. Implements SimClock.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// SetTime jumps the clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for the specified duration in a separate goroutine.
// It returns a channel that is closed when the controller finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tc.Run(context.Background(), duration)
	}()
	return done
}

// Run advances the clock from StartTime by Tick until duration has elapsed
// (forever when duration <= 0) or ctx is cancelled, calling every listener
// after each step. Cancellation is only observed between ticks; a listener
// call always completes. It returns ctx.Err() when cancelled.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	tc.mu.Lock()
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.mu.Unlock()

	var tickC <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	elapsed := time.Duration(0)
	for {
		if duration > 0 && elapsed >= duration {
			return nil
		}

		if tickC != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tickC:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		simTime = simTime.Add(tc.Tick)
		elapsed += tc.Tick

		tc.mu.Lock()
		tc.currentTime = simTime
		listeners := append([]func(time.Time){}, tc.listeners...)
		tc.mu.Unlock()

		for _, fn := range listeners {
			fn(simTime)
		}
	}
}
