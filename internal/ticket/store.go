// Package ticket keeps the passenger manifest and enforces the seating limit.
package ticket

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange     = errors.New("destination must be after boarding point")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrInvalidCount     = errors.New("passenger count must be at least 1")
	ErrUnknownStop      = errors.New("unknown stop")
	// ErrBoardingPassed rejects tickets boarding at a stop the bus has already left.
	ErrBoardingPassed = errors.New("boarding stop already passed")
)

// Ticket is a booking for PassengerCount people between two stops.
type Ticket struct {
	ID               string    `json:"id"`
	BusName          string    `json:"busName"`
	BoardingIndex    int       `json:"boardingIndex"`
	DestinationIndex int       `json:"destinationIndex"`
	PassengerCount   int       `json:"passengerCount"`
	IssuedAt         time.Time `json:"issuedAt"`
}

// Onboard reports whether the ticket's passengers are on the bus at stop index cur.
func (t Ticket) Onboard(cur int) bool {
	return t.BoardingIndex <= cur && cur < t.DestinationIndex
}

type IssueRequest struct {
	BusName          string
	BoardingIndex    int
	DestinationIndex int
	PassengerCount   int
}

// Store is the manifest. It is not safe for concurrent use; the owner
// serializes access so that the capacity check and the insert happen together.
type Store struct {
	capacity  int
	stopCount int
	tickets   []Ticket

	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock overrides the issuance timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides ticket identifier generation.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(capacity, stopCount int, opts ...Option) *Store {
	s := &Store{
		capacity:  capacity,
		stopCount: stopCount,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) Len() int { return len(s.tickets) }

// Issue validates req against the bus standing at stop index cur and appends a
// new ticket. Boarding behind cur is refused, so every admitted ticket still
// has its destination ahead. The whole request is rejected if admitting it
// would push the onboard count over capacity at any stop the ticket rides.
func (s *Store) Issue(req IssueRequest, cur int) (Ticket, error) {
	if req.PassengerCount < 1 {
		return Ticket{}, ErrInvalidCount
	}
	if !s.validStop(req.BoardingIndex) || !s.validStop(req.DestinationIndex) {
		return Ticket{}, ErrUnknownStop
	}
	if req.DestinationIndex <= req.BoardingIndex {
		return Ticket{}, ErrInvalidRange
	}
	if req.BoardingIndex < cur {
		return Ticket{}, ErrBoardingPassed
	}
	if s.PeakCount(req.BoardingIndex, req.DestinationIndex)+req.PassengerCount > s.capacity {
		return Ticket{}, ErrCapacityExceeded
	}
	t := Ticket{
		ID:               s.newID(),
		BusName:          req.BusName,
		BoardingIndex:    req.BoardingIndex,
		DestinationIndex: req.DestinationIndex,
		PassengerCount:   req.PassengerCount,
		IssuedAt:         s.now(),
	}
	s.tickets = append(s.tickets, t)
	return t, nil
}

// Remove deletes the ticket with the given id. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) (Ticket, bool) {
	for i, t := range s.tickets {
		if t.ID == id {
			s.tickets = append(s.tickets[:i], s.tickets[i+1:]...)
			return t, true
		}
	}
	return Ticket{}, false
}

// Reconcile drops every ticket whose destination is at or behind stop cur and
// returns the dropped tickets.
func (s *Store) Reconcile(cur int) []Ticket {
	var removed []Ticket
	kept := s.tickets[:0]
	for _, t := range s.tickets {
		if t.DestinationIndex <= cur {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	// clear the tail so dropped tickets are not retained by the backing array
	for i := len(kept); i < len(s.tickets); i++ {
		s.tickets[i] = Ticket{}
	}
	s.tickets = kept
	return removed
}

// ActiveCount sums passengers currently onboard at stop cur.
func (s *Store) ActiveCount(cur int) int {
	n := 0
	for _, t := range s.tickets {
		if t.Onboard(cur) {
			n += t.PassengerCount
		}
	}
	return n
}

// PeakCount is the largest ActiveCount over stops in [from, to). An empty
// range counts as zero.
func (s *Store) PeakCount(from, to int) int {
	peak := 0
	for cur := from; cur < to; cur++ {
		peak = max(peak, s.ActiveCount(cur))
	}
	return peak
}

// List returns a copy of the manifest in issuance order.
func (s *Store) List() []Ticket {
	out := make([]Ticket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

func (s *Store) validStop(i int) bool {
	return i >= 0 && i < s.stopCount
}
