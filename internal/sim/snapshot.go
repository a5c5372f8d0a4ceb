package sim

import (
	"time"

	"swiftroute/internal/motion"
	"swiftroute/internal/route"
	"swiftroute/internal/ticket"
)

// Snapshot is a consistent read of the bus taken under its lock.
type Snapshot struct {
	BusName          string          `json:"busName"`
	CurrentStopIndex int             `json:"currentStopIndex"`
	NextStopIndex    int             `json:"nextStopIndex"`
	Phase            motion.Phase    `json:"phase"`
	Progress         float64         `json:"progress"`
	Halted           bool            `json:"halted"`
	HaltRemainingMs  int64           `json:"haltRemainingMs"`
	Position         route.Position  `json:"position"`
	Status           string          `json:"status"`
	Onboard          int             `json:"onboard"`
	Capacity         int             `json:"capacity"`
	SeatsLeft        int             `json:"seatsLeft"`
	Full             bool            `json:"full"`
	Tickets          []ticket.Ticket `json:"tickets"`
	At               time.Time       `json:"at"`
}

func (b *Bus) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(time.Now())
}

// State returns the current motion state.
func (b *Bus) State() motion.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ActiveCount is the onboard passenger count at the current stop index.
func (b *Bus) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.ActiveCount(b.state.StopIndex)
}

func (b *Bus) Tickets() []ticket.Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.List()
}

func (b *Bus) snapshotLocked(now time.Time) Snapshot {
	s := b.state
	n := b.route.Len()
	next := s.Next(n)
	nextStop, _ := b.route.Stop(next)
	onboard := b.store.ActiveCount(s.StopIndex)
	capacity := b.store.Capacity()

	status := "Moving to " + nextStop.Name
	if s.Halted {
		status = "At " + nextStop.Name
	}
	seats := capacity - onboard
	if seats < 0 {
		seats = 0
	}
	return Snapshot{
		BusName:          b.name,
		CurrentStopIndex: s.StopIndex,
		NextStopIndex:    next,
		Phase:            s.Phase(),
		Progress:         s.Progress,
		Halted:           s.Halted,
		HaltRemainingMs:  s.HaltRemaining.Milliseconds(),
		Position:         b.route.Position(s.StopIndex, s.Progress),
		Status:           status,
		Onboard:          onboard,
		Capacity:         capacity,
		SeatsLeft:        seats,
		Full:             onboard >= capacity,
		Tickets:          b.store.List(),
		At:               now,
	}
}
