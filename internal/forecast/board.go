package forecast

import (
	"sync"
	"time"
)

// Board holds the forecast currently on display. Each request takes a token
// from Begin; a response is shown only if nothing newer has been shown yet.
type Board struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	latest  *Shown
}

type Shown struct {
	Result
	BusName   string    `json:"busName"`
	StopIndex int       `json:"stopIndex"`
	At        time.Time `json:"at"`
}

func (b *Board) Begin() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	return b.issued
}

// Apply records s for token and reports whether it is now on display.
func (b *Board) Apply(token uint64, s Shown) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if token <= b.applied {
		return false
	}
	b.applied = token
	b.latest = &s
	return true
}

func (b *Board) Latest() (Shown, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return Shown{}, false
	}
	return *b.latest, true
}
