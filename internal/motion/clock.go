// Package motion is the bus clock: a pure state machine that alternates
// between driving towards the next stop and dwelling at it.
package motion

import "time"

const (
	DefaultTick    = 100 * time.Millisecond
	DefaultTransit = 20 * time.Second
	DefaultHalt    = 10 * time.Second
)

type Phase string

const (
	PhaseTransit Phase = "TRANSIT"
	PhaseHalted  Phase = "HALTED"
)

// Event is what a single step produced.
type Event int

const (
	EventNone Event = iota
	// EventHalted fires when the bus reaches the upcoming stop and starts dwelling.
	EventHalted
	// EventArrived fires when the dwell ends and StopIndex moves on.
	EventArrived
)

type Config struct {
	Tick    time.Duration
	Transit time.Duration
	Halt    time.Duration
}

func DefaultConfig() Config {
	return Config{Tick: DefaultTick, Transit: DefaultTransit, Halt: DefaultHalt}
}

// State is the bus position. StopIndex is the stop last departed from; while
// Halted the bus stands at the stop after it with Progress pinned at 1.
type State struct {
	StopIndex     int           `json:"currentStopIndex"`
	Progress      float64       `json:"progress"`
	Halted        bool          `json:"halted"`
	HaltRemaining time.Duration `json:"-"`
	Elapsed       time.Duration `json:"-"`
}

// Initial is the state at process start: in transit from stop 0.
func Initial() State { return State{} }

func (s State) Phase() Phase {
	if s.Halted {
		return PhaseHalted
	}
	return PhaseTransit
}

// Next is the index of the stop the bus is heading to (or standing at).
func (s State) Next(stops int) int {
	return (s.StopIndex + 1) % stops
}

// Step advances s by one tick of cfg.Tick on a route with the given number of stops.
func Step(s State, cfg Config, stops int) (State, Event) {
	return Advance(s, cfg, stops, cfg.Tick)
}

// Advance is Step with an explicit amount of simulated time, used when ticks
// are scaled by a speed multiplier.
func Advance(s State, cfg Config, stops int, d time.Duration) (State, Event) {
	if d <= 0 || stops <= 0 {
		return s, EventNone
	}
	if s.Halted {
		s.HaltRemaining -= d
		if s.HaltRemaining > 0 {
			return s, EventNone
		}
		return State{StopIndex: (s.StopIndex + 1) % stops}, EventArrived
	}

	s.Elapsed += d
	if cfg.Transit <= 0 || s.Elapsed >= cfg.Transit {
		s.Elapsed = cfg.Transit
		s.Progress = 1
		s.Halted = true
		s.HaltRemaining = cfg.Halt
		return s, EventHalted
	}
	s.Progress = float64(s.Elapsed) / float64(cfg.Transit)
	return s, EventNone
}
