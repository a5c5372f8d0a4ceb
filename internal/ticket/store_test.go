package ticket

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	n := 0
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewStore(55, 6,
		WithClock(func() time.Time { return fixed }),
		WithIDs(func() string { n++; return fmt.Sprintf("t%d", n) }),
	)
}

func issue(t *testing.T, s *Store, cur, from, to, count int) Ticket {
	t.Helper()
	tk, err := s.Issue(IssueRequest{BusName: "Swift-Kerala Express", BoardingIndex: from, DestinationIndex: to, PassengerCount: count}, cur)
	require.NoError(t, err)
	return tk
}

func TestIssue(t *testing.T) {
	s := newTestStore()
	tk := issue(t, s, 0, 0, 3, 4)
	assert.Equal(t, "t1", tk.ID)
	assert.Equal(t, 4, tk.PassengerCount)
	assert.Equal(t, "Swift-Kerala Express", tk.BusName)
	assert.False(t, tk.IssuedAt.IsZero())
	assert.Equal(t, 4, s.ActiveCount(0))
	assert.Equal(t, 1, s.Len())
}

func TestIssueUsesUUIDByDefault(t *testing.T) {
	s := NewStore(55, 6)
	a, err := s.Issue(IssueRequest{BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 1}, 0)
	require.NoError(t, err)
	b, err := s.Issue(IssueRequest{BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 1}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestIssueRejections(t *testing.T) {
	tests := []struct {
		name string
		req  IssueRequest
		want error
	}{
		{"destination before boarding", IssueRequest{BoardingIndex: 2, DestinationIndex: 1, PassengerCount: 1}, ErrInvalidRange},
		{"destination equals boarding", IssueRequest{BoardingIndex: 2, DestinationIndex: 2, PassengerCount: 1}, ErrInvalidRange},
		{"zero passengers", IssueRequest{BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 0}, ErrInvalidCount},
		{"negative boarding", IssueRequest{BoardingIndex: -1, DestinationIndex: 1, PassengerCount: 1}, ErrUnknownStop},
		{"destination past route end", IssueRequest{BoardingIndex: 0, DestinationIndex: 6, PassengerCount: 1}, ErrUnknownStop},
		{"over capacity alone", IssueRequest{BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 56}, ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			_, err := s.Issue(tt.req, 0)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, s.Len())
		})
	}
}

func TestCapacityGateRejectsWholeRequest(t *testing.T) {
	s := newTestStore()
	issue(t, s, 0, 0, 2, 50)
	_, err := s.Issue(IssueRequest{BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 6}, 0)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 50, s.ActiveCount(0))

	issue(t, s, 0, 0, 1, 5)
	assert.Equal(t, 55, s.ActiveCount(0))
	_, err = s.Issue(IssueRequest{BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 1}, 0)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCapacityGateLooksAhead(t *testing.T) {
	s := newTestStore()
	issue(t, s, 0, 1, 3, 55)
	assert.Zero(t, s.ActiveCount(0))

	_, err := s.Issue(IssueRequest{BoardingIndex: 0, DestinationIndex: 2, PassengerCount: 10}, 0)
	assert.ErrorIs(t, err, ErrCapacityExceeded, "would overfill the bus at stop 1")

	issue(t, s, 0, 0, 1, 55)
	assert.Equal(t, 55, s.PeakCount(0, 3))
	assert.Zero(t, s.PeakCount(3, 3))
}

func TestCapacityScenario(t *testing.T) {
	s := newTestStore()
	first := issue(t, s, 0, 0, 1, 10)
	issue(t, s, 0, 0, 2, 20)
	issue(t, s, 0, 1, 3, 30)
	assert.Equal(t, 30, s.ActiveCount(0))

	assert.Equal(t, []Ticket{first}, s.Reconcile(1))
	assert.Equal(t, 50, s.ActiveCount(1))

	_, err := s.Issue(IssueRequest{BoardingIndex: 1, DestinationIndex: 2, PassengerCount: 10}, 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, s.Len())

	issue(t, s, 1, 1, 2, 5)
	assert.Equal(t, 55, s.ActiveCount(1))
}

func TestActiveCountBoundaries(t *testing.T) {
	s := newTestStore()
	issue(t, s, 0, 1, 3, 7)

	assert.Equal(t, 0, s.ActiveCount(0), "not yet boarded")
	assert.Equal(t, 7, s.ActiveCount(1), "boarding stop counts immediately")
	assert.Equal(t, 7, s.ActiveCount(2))
	assert.Equal(t, 0, s.ActiveCount(3), "destination stop does not count")
}

func TestRemove(t *testing.T) {
	s := newTestStore()
	a := issue(t, s, 0, 0, 2, 3)
	b := issue(t, s, 0, 0, 4, 2)

	got, ok := s.Remove(a.ID)
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, []Ticket{b}, s.List())

	_, ok = s.Remove("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestReconcile(t *testing.T) {
	s := newTestStore()
	a := issue(t, s, 0, 0, 1, 1)
	b := issue(t, s, 0, 0, 2, 1)
	c := issue(t, s, 0, 1, 3, 1)

	removed := s.Reconcile(1)
	assert.Equal(t, []Ticket{a}, removed)
	assert.Equal(t, []Ticket{b, c}, s.List())

	removed = s.Reconcile(3)
	assert.Equal(t, []Ticket{b, c}, removed)
	assert.Zero(t, s.Len())
}

func TestReconcileIdempotent(t *testing.T) {
	s := newTestStore()
	issue(t, s, 0, 0, 1, 1)
	issue(t, s, 0, 0, 4, 1)
	issue(t, s, 0, 2, 5, 1)

	s.Reconcile(2)
	once := s.List()
	assert.Empty(t, s.Reconcile(2))
	assert.Equal(t, once, s.List())
}

func TestListIsACopy(t *testing.T) {
	s := newTestStore()
	issue(t, s, 0, 0, 1, 1)
	l := s.List()
	l[0].PassengerCount = 40
	assert.Equal(t, 1, s.ActiveCount(0))
}

func TestStoreNeverHoldsInvalidRange(t *testing.T) {
	s := newTestStore()
	for from := -1; from <= 6; from++ {
		for to := -1; to <= 6; to++ {
			_, _ = s.Issue(IssueRequest{BoardingIndex: from, DestinationIndex: to, PassengerCount: 1}, 0)
		}
	}
	require.NotZero(t, s.Len())
	for _, tk := range s.List() {
		assert.Greater(t, tk.DestinationIndex, tk.BoardingIndex)
	}
	for cur := 0; cur < 6; cur++ {
		assert.LessOrEqual(t, s.ActiveCount(cur), 55)
	}
}

func TestOnboardNeverExceedsCapacity(t *testing.T) {
	s := newTestStore()
	for round := 0; round < 4; round++ {
		for from := 0; from < 5; from++ {
			for to := from + 1; to < 6; to++ {
				_, _ = s.Issue(IssueRequest{BoardingIndex: from, DestinationIndex: to, PassengerCount: 3 + from + to}, 0)
			}
		}
	}
	for cur := 0; cur < 6; cur++ {
		assert.LessOrEqual(t, s.ActiveCount(cur), 55, "stop %d", cur)
	}
}

func TestIssueRefusesBoardingBehindBus(t *testing.T) {
	s := newTestStore()
	for _, req := range []IssueRequest{
		{BoardingIndex: 1, DestinationIndex: 3, PassengerCount: 2},
		{BoardingIndex: 0, DestinationIndex: 2, PassengerCount: 2},
		{BoardingIndex: 2, DestinationIndex: 5, PassengerCount: 2},
	} {
		_, err := s.Issue(req, 3)
		assert.ErrorIs(t, err, ErrBoardingPassed)
	}
	assert.Zero(t, s.Len())

	tk, err := s.Issue(IssueRequest{BoardingIndex: 3, DestinationIndex: 4, PassengerCount: 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, s.Reconcile(3), "an admitted ticket is never already due")
	assert.Equal(t, []Ticket{tk}, s.List())
}
