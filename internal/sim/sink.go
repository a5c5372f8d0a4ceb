package sim

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"swiftroute/internal/db"
	mmetrics "swiftroute/internal/metrics"
	"swiftroute/internal/publisher"
	"swiftroute/internal/ticket"
)

type ManifestKind = publisher.ManifestKind

const (
	ManifestIssued     = publisher.ManifestIssued
	ManifestRemoved    = publisher.ManifestRemoved
	ManifestReconciled = publisher.ManifestReconciled
)

type ManifestChange struct {
	Kind      ManifestKind
	Bus       string
	Ticket    ticket.Ticket
	StopIndex int
	Onboard   int
	At        time.Time
}

// Sink receives bus events outside the bus lock. Implementations handle their
// own errors; a failing sink never affects the simulation.
type Sink interface {
	PositionChanged(ctx context.Context, s Snapshot)
	ManifestChanged(ctx context.Context, c ManifestChange)
}

type nopSink struct{}

func (nopSink) PositionChanged(context.Context, Snapshot)       {}
func (nopSink) ManifestChanged(context.Context, ManifestChange) {}

// Sinks fans events out to every sink in order.
type Sinks []Sink

func (s Sinks) PositionChanged(ctx context.Context, snap Snapshot) {
	for _, sink := range s {
		sink.PositionChanged(ctx, snap)
	}
}

func (s Sinks) ManifestChanged(ctx context.Context, c ManifestChange) {
	for _, sink := range s {
		sink.ManifestChanged(ctx, c)
	}
}

// NATSSink publishes positions and manifest changes.
type NATSSink struct {
	Pub *publisher.NATSPublisher
}

func (n NATSSink) PositionChanged(_ context.Context, s Snapshot) {
	err := n.Pub.PublishPosition(publisher.PositionMessage{
		Bus:             s.BusName,
		StopIndex:       s.CurrentStopIndex,
		NextStopIndex:   s.NextStopIndex,
		Progress:        s.Progress,
		Halted:          s.Halted,
		HaltRemainingMs: s.HaltRemainingMs,
		X:               s.Position.X,
		Y:               s.Position.Y,
		Heading:         s.Position.HeadingDeg,
		Onboard:         s.Onboard,
		Timestamp:       s.At,
	})
	if err != nil {
		log.Warn().Err(err).Str("bus", s.BusName).Msg("publish position")
	}
}

func (n NATSSink) ManifestChanged(_ context.Context, c ManifestChange) {
	err := n.Pub.PublishManifest(publisher.ManifestMessage{
		Bus:       c.Bus,
		Kind:      c.Kind,
		Ticket:    c.Ticket,
		StopIndex: c.StopIndex,
		Onboard:   c.Onboard,
		Timestamp: c.At,
	})
	if err != nil {
		log.Warn().Err(err).Str("bus", c.Bus).Str("ticket", c.Ticket.ID).Msg("publish manifest")
	}
}

// JournalSink appends manifest changes to the Postgres journal.
type JournalSink struct {
	Journal *db.Journal
	Metrics *mmetrics.Collector
}

func (JournalSink) PositionChanged(context.Context, Snapshot) {}

func (j JournalSink) ManifestChanged(ctx context.Context, c ManifestChange) {
	err := j.Journal.Record(ctx, db.Entry{
		TicketID:    c.Ticket.ID,
		BusName:     c.Bus,
		Kind:        string(c.Kind),
		Boarding:    c.Ticket.BoardingIndex,
		Destination: c.Ticket.DestinationIndex,
		Passengers:  c.Ticket.PassengerCount,
		StopIndex:   c.StopIndex,
		RecordedAt:  c.At,
	})
	if err != nil {
		log.Error().Err(err).Msg("journal write failed")
		if j.Metrics != nil {
			j.Metrics.JournalErrs.Inc()
		}
	}
}
