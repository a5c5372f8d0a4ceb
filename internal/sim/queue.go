package sim

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultSinkBuffer is the queue length used when Options.SinkBuffer is unset.
const DefaultSinkBuffer = 256

type sinkEvent struct {
	ctx    context.Context
	snap   *Snapshot
	change *ManifestChange
}

// sinkQueue hands events to a slow sink from its own goroutine so that
// journal or NATS latency never reaches the tick loop or a ticket request.
// When the buffer is full the event is dropped and counted.
type sinkQueue struct {
	inner   Sink
	events  chan sinkEvent
	dropped func()

	mu      sync.Mutex
	quit    chan struct{}
	done    chan struct{}
	running bool
}

func newSinkQueue(inner Sink, size int, dropped func()) *sinkQueue {
	if size <= 0 {
		size = DefaultSinkBuffer
	}
	if dropped == nil {
		dropped = func() {}
	}
	return &sinkQueue{inner: inner, events: make(chan sinkEvent, size), dropped: dropped}
}

func (q *sinkQueue) PositionChanged(ctx context.Context, s Snapshot) {
	q.offer(sinkEvent{ctx: context.WithoutCancel(ctx), snap: &s})
}

func (q *sinkQueue) ManifestChanged(ctx context.Context, c ManifestChange) {
	q.offer(sinkEvent{ctx: context.WithoutCancel(ctx), change: &c})
}

func (q *sinkQueue) offer(e sinkEvent) {
	select {
	case q.events <- e:
	default:
		q.dropped()
		log.Warn().Msg("sink queue full, dropping event")
	}
}

func (q *sinkQueue) start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.quit = make(chan struct{})
	q.done = make(chan struct{})
	go q.loop(q.quit, q.done)
}

// stop delivers whatever is still buffered and waits for the worker to exit.
func (q *sinkQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	q.running = false
	close(q.quit)
	<-q.done
}

func (q *sinkQueue) loop(quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case e := <-q.events:
			q.deliver(e)
		case <-quit:
			for {
				select {
				case e := <-q.events:
					q.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (q *sinkQueue) deliver(e sinkEvent) {
	switch {
	case e.snap != nil:
		q.inner.PositionChanged(e.ctx, *e.snap)
	case e.change != nil:
		q.inner.ManifestChanged(e.ctx, *e.change)
	}
}
