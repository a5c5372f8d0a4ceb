// Package route holds the ordered, cyclic stop table the bus runs along.
package route

import (
	"fmt"
	"math"
)

// Stop is a named waypoint. Index is its position in route order.
type Stop struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Route is an immutable ordered list of stops. After the last stop the bus
// returns to stop 0.
type Route struct {
	Name  string `json:"name"`
	stops []Stop
}

// Position is a derived point between two stops.
type Position struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingDeg float64 `json:"heading"`
}

// New builds a route from stop names and coordinates; indexes are assigned in order.
func New(name string, stops []Stop) (*Route, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("route %q needs at least 2 stops, got %d", name, len(stops))
	}
	out := make([]Stop, len(stops))
	for i, s := range stops {
		if s.Name == "" {
			return nil, fmt.Errorf("stop %d has no name", i)
		}
		s.Index = i
		out[i] = s
	}
	return &Route{Name: name, stops: out}, nil
}

// Default returns the built-in Kasaragod to Kottayam route.
func Default() *Route {
	r, _ := New("Kasaragod - Kottayam", []Stop{
		{Name: "Kasaragod", X: 200, Y: 50},
		{Name: "Kannur", X: 220, Y: 150},
		{Name: "Malappuram", X: 260, Y: 250},
		{Name: "Thrissur", X: 250, Y: 350},
		{Name: "Ernakulam", X: 230, Y: 450},
		{Name: "Kottayam", X: 280, Y: 550},
	})
	return r
}

func (r *Route) Len() int { return len(r.stops) }

// Stops returns a copy of the stop table.
func (r *Route) Stops() []Stop {
	out := make([]Stop, len(r.stops))
	copy(out, r.stops)
	return out
}

// Stop returns the stop at index i.
func (r *Route) Stop(i int) (Stop, bool) {
	if i < 0 || i >= len(r.stops) {
		return Stop{}, false
	}
	return r.stops[i], true
}

// Next returns the index following i, wrapping to 0 after the last stop.
func (r *Route) Next(i int) int {
	return (i + 1) % len(r.stops)
}

// Position interpolates linearly between stop from and the stop after it.
// progress is clamped to [0,1].
func (r *Route) Position(from int, progress float64) Position {
	if from < 0 || from >= len(r.stops) {
		from = 0
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	a := r.stops[from]
	b := r.stops[r.Next(from)]
	return Position{
		X:          a.X + (b.X-a.X)*progress,
		Y:          a.Y + (b.Y-a.Y)*progress,
		HeadingDeg: heading(a, b),
	}
}

// SegmentLength is the planar distance from stop i to the stop after it.
func (r *Route) SegmentLength(i int) float64 {
	a := r.stops[i]
	b := r.stops[r.Next(i)]
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// heading is measured clockwise from the negative Y axis, matching screen
// coordinates where Y grows downwards.
func heading(a, b Stop) float64 {
	deg := math.Atan2(b.X-a.X, -(b.Y-a.Y)) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
