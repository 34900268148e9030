package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/api/metrics"
	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	drainTimeout   = 5 * time.Second
)

// Dispatcher routes order events to a fixed set of workers using consistent
// hashing on the order id, guaranteeing per-order event ordering. It is the
// ports.AuditSink handed to the order service.
type Dispatcher struct {
	workers []chan domain.OrderEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

var _ ports.AuditSink = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers that
// persist events through repo.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.OrderEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.OrderEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled,
// after persisting whatever is still buffered.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Run starts the workers and blocks until they have all stopped.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start(ctx)
	d.wg.Wait()
	return nil
}

// Notify hands the event to the worker responsible for its order. It never
// blocks: when the worker channel is full the event is dropped and counted.
func (d *Dispatcher) Notify(event domain.OrderEvent) {
	idx := d.shardIndex(event.OrderID)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditDroppedTotal.Inc()
		d.log.Warn().
			Str("order_id", event.OrderID).
			Str("action", string(event.Action)).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps an order id deterministically to a worker index.
func (d *Dispatcher) shardIndex(orderID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.OrderEvent) {
	defer d.wg.Done()
	depth := metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx, id, ch)
			return
		case event := <-ch:
			depth.Set(float64(len(ch)))
			d.process(ctx, id, event)
		}
	}
}

// drain persists buffered events once the dispatcher is shutting down.
func (d *Dispatcher) drain(ctx context.Context, id int, ch <-chan domain.OrderEvent) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-ch:
			d.process(drainCtx, id, event)
		default:
			metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(0)
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, id int, event domain.OrderEvent) {
	start := time.Now()
	err := d.repo.InsertEvent(ctx, &event)

	result := "ok"
	if err != nil {
		result = "error"
		d.log.Error().Err(err).
			Str("order_id", event.OrderID).
			Str("action", string(event.Action)).
			Int("worker_id", id).
			Msg("audit event persistence failed")
	}
	metrics.AuditProcessingDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	metrics.OrderEventsTotal.WithLabelValues(string(event.Action)).Inc()
	if event.Action == domain.ActionTransitioned {
		metrics.OrderTransitionsTotal.WithLabelValues(string(event.From), string(event.To)).Inc()
	}
}
