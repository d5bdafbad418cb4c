package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// ErrQueueFull is returned by Record when the event's worker has no room.
var ErrQueueFull = errors.New("security event queue full")

// Dispatcher fans security events out to a set of sinks on background
// workers. Events are sharded by session reference, so events from one
// session reach the sinks in the order they were recorded.
type Dispatcher struct {
	workers []chan domain.SecurityEvent
	sinks   []ports.SecuritySink
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger, sinks ...ports.SecuritySink) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.SecurityEvent, numWorkers),
		sinks:   sinks,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.SecurityEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. When ctx is cancelled each worker
// flushes what is already queued and exits.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Record queues event without blocking. It implements ports.SecuritySink.
func (d *Dispatcher) Record(_ context.Context, event domain.SecurityEvent) error {
	select {
	case d.workers[d.shardIndex(event.SessionRef)] <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// shardIndex maps a session reference deterministically to a worker index.
func (d *Dispatcher) shardIndex(ref string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.SecurityEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case event := <-ch:
			d.deliver(ctx, id, event)
		}
	}
}

func (d *Dispatcher) drain(id int, ch <-chan domain.SecurityEvent) {
	ctx := context.Background()
	for {
		select {
		case event := <-ch:
			d.deliver(ctx, id, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, event domain.SecurityEvent) {
	for _, sink := range d.sinks {
		if err := sink.Record(ctx, event); err != nil {
			d.log.Error().Err(err).
				Str("event", string(event.Type)).
				Int("worker_id", id).
				Msg("security event delivery failed")
		}
	}
}
