package notify

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const initialQueueCapacity = 16

// Dispatcher serializes notifications to a Service.
//
// A single worker drains the queue: each event's order lookup and track
// report complete (or fail) before the next event starts. Failures are
// logged and dropped, never retried. The queue is unbounded.
type Dispatcher struct {
	svc      Service
	timeout  time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
	onSettle func(Outcome)

	mu    sync.Mutex
	queue *queue
	wake  chan struct{}
}

// NewDispatcher creates a Dispatcher. timeout bounds each remote call.
func NewDispatcher(svc Service, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		svc:     svc,
		timeout: timeout,
		log:     log,
		now:     time.Now,
		queue:   newQueue(initialQueueCapacity),
		wake:    make(chan struct{}, 1),
	}
}

// OnSettle registers f to be called by the worker after each event settles.
// Must be called before Run.
func (d *Dispatcher) OnSettle(f func(Outcome)) {
	d.onSettle = f
}

// Enqueue appends ev to the queue. It never blocks.
func (d *Dispatcher) Enqueue(ev Event) {
	d.mu.Lock()
	grew := d.queue.push(ev)
	depth, capacity := d.queue.len(), d.queue.capacity()
	d.mu.Unlock()

	if grew {
		d.log.WithFields(logrus.Fields{"depth": depth, "capacity": capacity}).Warn("dispatch queue grew")
	}

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued events not yet started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.len()
}

// Run processes queued events one at a time until ctx is cancelled.
// Events still queued at cancellation are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d.mu.Lock()
		ev, ok := d.queue.pop()
		d.mu.Unlock()

		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.wake:
			}
			continue
		}

		out := d.process(ctx, ev)
		if d.onSettle != nil {
			d.onSettle(out)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, ev Event) (out Outcome) {
	log := d.log.WithFields(logrus.Fields{
		"event_id": ev.ID,
		"line":     ev.Input.Line,
	})
	out = Outcome{Event: ev, Started: d.now()}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("notification panicked: %v", r)
		}
		out.Finished = d.now()
		if out.Err != nil {
			log.WithError(out.Err).Warn("tracking notification dropped")
		}
	}()

	log.Info("invoking tracking service")

	orderID, err := d.currentOrder(ctx)
	if err != nil {
		out.Err = fmt.Errorf("fetch order: %w", err)
		return out
	}
	out.OrderID = orderID
	if orderID == "" {
		log.Warn("no active order in response from tracking service - continuing anyway")
	} else {
		log.WithField("order_id", orderID).Info("active order")
	}

	query := ev.Query(orderID)
	if err := d.reportTrack(ctx, query); err != nil {
		out.Err = fmt.Errorf("report track: %w", err)
		return out
	}
	log.WithField("query", query.Encode()).Info("tracking data sent")
	return out
}

func (d *Dispatcher) currentOrder(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.svc.CurrentOrder(ctx)
}

func (d *Dispatcher) reportTrack(ctx context.Context, query url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.svc.ReportTrack(ctx, query)
}
