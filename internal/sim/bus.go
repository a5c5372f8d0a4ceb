package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	mmetrics "swiftroute/internal/metrics"
	"swiftroute/internal/motion"
	"swiftroute/internal/route"
	"swiftroute/internal/ticket"
)

// ErrBoardingPassed rejects tickets boarding at a stop the bus has already left.
var ErrBoardingPassed = ticket.ErrBoardingPassed

const DefaultBusName = "Swift-Kerala Express"

type Options struct {
	Route           *route.Route
	BusName         string
	Capacity        int
	Motion          motion.Config
	SpeedMultiplier float64
	PublishInterval time.Duration
	Sink            Sink
	Metrics         *mmetrics.Collector
	StoreOptions    []ticket.Option

	// SinkBuffer > 0 moves Sink calls onto a worker goroutine with a queue of
	// that length, started and stopped with the bus. Zero calls Sink inline.
	SinkBuffer int
}

// Bus owns the motion state and the manifest of one simulated bus. Every
// mutation runs under mu, so a capacity check and the insert it guards can't
// interleave with a tick or another issuance.
type Bus struct {
	route           *route.Route
	name            string
	cfg             motion.Config
	speedMultiplier float64
	publishInterval time.Duration
	sink            Sink
	queue           *sinkQueue
	metrics         *mmetrics.Collector

	mu          sync.Mutex
	state       motion.State
	store       *ticket.Store
	lastPublish time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBus(opt Options) (*Bus, error) {
	if opt.Route == nil {
		return nil, errors.New("route is required")
	}
	if opt.Capacity <= 0 {
		return nil, fmt.Errorf("invalid capacity: %d", opt.Capacity)
	}
	if opt.Motion.Tick <= 0 {
		return nil, fmt.Errorf("invalid tick interval: %s", opt.Motion.Tick)
	}
	if opt.BusName == "" {
		opt.BusName = DefaultBusName
	}
	if opt.SpeedMultiplier <= 0 {
		opt.SpeedMultiplier = 1
	}
	sink := opt.Sink
	if sink == nil {
		sink = nopSink{}
	}
	var queue *sinkQueue
	if opt.SinkBuffer > 0 {
		var dropped func()
		if opt.Metrics != nil {
			dropped = opt.Metrics.SinkDropped.Inc
		}
		queue = newSinkQueue(sink, opt.SinkBuffer, dropped)
		sink = queue
	}
	b := &Bus{
		route:           opt.Route,
		name:            opt.BusName,
		cfg:             opt.Motion,
		speedMultiplier: opt.SpeedMultiplier,
		publishInterval: opt.PublishInterval,
		sink:            sink,
		queue:           queue,
		metrics:         opt.Metrics,
		state:           motion.Initial(),
		store:           ticket.NewStore(opt.Capacity, opt.Route.Len(), opt.StoreOptions...),
	}
	if b.metrics != nil {
		b.metrics.StopIndex.Set(0)
		b.metrics.Onboard.Set(0)
	}
	return b, nil
}

func (b *Bus) Name() string { return b.name }

func (b *Bus) Route() *route.Route { return b.route }

// Start runs the tick loop and the sink worker in the background until Stop
// or ctx is done.
func (b *Bus) Start(parent context.Context) {
	if b.queue != nil {
		b.queue.start()
	}
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("bus", b.name).Msg("simulation stopped")
		}
	}()
}

func (b *Bus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	if b.queue != nil {
		b.queue.stop()
	}
}

// Run ticks the clock at the configured cadence until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	log.Info().Str("bus", b.name).Str("route", b.route.Name).Dur("tick", b.cfg.Tick).Msg("starting simulation")
	tick := time.NewTicker(b.cfg.Tick)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			b.Tick(ctx, now)
		}
	}
}

// Tick advances the clock by one tick. On arrival at a new stop index the
// manifest is reconciled before the lock is released, so any later read sees
// the pruned manifest.
func (b *Bus) Tick(ctx context.Context, now time.Time) motion.Event {
	tickStart := time.Now()
	d := time.Duration(float64(b.cfg.Tick) * b.speedMultiplier)

	b.mu.Lock()
	prev := b.state
	next, ev := motion.Advance(b.state, b.cfg, b.route.Len(), d)
	b.state = next
	var reconciled []ticket.Ticket
	if ev == motion.EventArrived {
		reconciled = b.store.Reconcile(next.StopIndex)
	}
	onboard := b.store.ActiveCount(next.StopIndex)
	publish := ev != motion.EventNone || b.publishInterval <= 0 || now.Sub(b.lastPublish) >= b.publishInterval
	var snap Snapshot
	if publish {
		b.lastPublish = now
		snap = b.snapshotLocked(now)
	}
	b.mu.Unlock()

	switch ev {
	case motion.EventHalted:
		at, _ := b.route.Stop(next.Next(b.route.Len()))
		log.Debug().Str("bus", b.name).Str("stop", at.Name).Msg("halted")
	case motion.EventArrived:
		from, _ := b.route.Stop(prev.StopIndex)
		to, _ := b.route.Stop(next.StopIndex)
		log.Info().Str("bus", b.name).Str("from", from.Name).Str("stop", to.Name).
			Int("reconciled", len(reconciled)).Int("onboard", onboard).Msg("stop index advanced")
		for _, t := range reconciled {
			b.sink.ManifestChanged(ctx, ManifestChange{Kind: ManifestReconciled, Bus: b.name, Ticket: t, StopIndex: next.StopIndex, Onboard: onboard, At: now})
		}
	}
	if publish {
		b.sink.PositionChanged(ctx, snap)
	}
	if b.metrics != nil {
		b.metrics.Onboard.Set(float64(onboard))
		b.metrics.StopIndex.Set(float64(next.StopIndex))
		if next.Halted {
			b.metrics.Halted.Set(1)
		} else {
			b.metrics.Halted.Set(0)
		}
		if ev == motion.EventArrived {
			b.metrics.Arrivals.Inc()
			b.metrics.TicketsReconciled.Add(float64(len(reconciled)))
		}
		b.metrics.TickDuration.Observe(time.Since(tickStart).Seconds())
	}
	return ev
}

// IssueTicket is the conductor's issuance action.
func (b *Bus) IssueTicket(ctx context.Context, req ticket.IssueRequest) (ticket.Ticket, error) {
	if req.BusName == "" {
		req.BusName = "Admin Issued"
	}
	b.mu.Lock()
	cur := b.state.StopIndex
	t, err := b.store.Issue(req, cur)
	onboard := b.store.ActiveCount(cur)
	b.mu.Unlock()

	if err != nil {
		if b.metrics != nil {
			b.metrics.TicketsRejected.WithLabelValues(RejectReason(err)).Inc()
		}
		log.Info().Err(err).Str("bus", b.name).Int("boarding", req.BoardingIndex).
			Int("destination", req.DestinationIndex).Int("count", req.PassengerCount).Msg("ticket rejected")
		return ticket.Ticket{}, err
	}
	if b.metrics != nil {
		b.metrics.TicketsIssued.Inc()
		b.metrics.Onboard.Set(float64(onboard))
	}
	log.Info().Str("bus", b.name).Str("ticket", t.ID).Int("count", t.PassengerCount).Int("onboard", onboard).Msg("ticket issued")
	b.sink.ManifestChanged(ctx, ManifestChange{Kind: ManifestIssued, Bus: b.name, Ticket: t, StopIndex: cur, Onboard: onboard, At: t.IssuedAt})
	return t, nil
}

// RemoveTicket deletes a ticket by id. Unknown ids are ignored.
func (b *Bus) RemoveTicket(ctx context.Context, id string) bool {
	b.mu.Lock()
	t, ok := b.store.Remove(id)
	cur := b.state.StopIndex
	onboard := b.store.ActiveCount(cur)
	b.mu.Unlock()

	if !ok {
		return false
	}
	if b.metrics != nil {
		b.metrics.TicketsRemoved.Inc()
		b.metrics.Onboard.Set(float64(onboard))
	}
	log.Info().Str("bus", b.name).Str("ticket", id).Msg("ticket removed")
	b.sink.ManifestChanged(ctx, ManifestChange{Kind: ManifestRemoved, Bus: b.name, Ticket: t, StopIndex: cur, Onboard: onboard, At: time.Now()})
	return true
}

// RejectReason maps an issuance error to a stable machine-readable code.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ticket.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ticket.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ticket.ErrInvalidCount):
		return "invalid_count"
	case errors.Is(err, ticket.ErrUnknownStop):
		return "unknown_stop"
	case errors.Is(err, ErrBoardingPassed):
		return "boarding_passed"
	default:
		return "unknown"
	}
}
