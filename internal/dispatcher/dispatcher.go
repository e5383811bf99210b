// Package dispatcher routes agent records to the handler registered for
// their kind. A route either runs its handler inline on the tick goroutine
// or hands the record to a bounded queue drained by a single worker, which
// keeps per-kind order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrClosed        = errors.New("dispatcher closed")
	ErrUnknownKind   = errors.New("no route for record kind")
	ErrQueueFull     = errors.New("record queue full")
	ErrDuplicateKind = errors.New("record kind already routed")
)

// Record is one unit of agent output, routed by Kind.
type Record struct {
	Kind    string
	Tick    uint
	Payload any
}

// Handler consumes a record.
type Handler func(Record) error

// Logger is what the dispatcher logs through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a route.
type Option func(*routeOpts)

type routeOpts struct {
	queue    int
	lossless bool
	traced   bool
}

// Queue runs the handler on a worker behind a queue of n records.
func Queue(n int) Option {
	return func(o *routeOpts) { o.queue = n }
}

// Lossless makes Dispatch wait for room on a full queue instead of
// dropping the record.
func Lossless() Option {
	return func(o *routeOpts) { o.lossless = true }
}

// Traced logs every record the route handles at debug level.
func Traced() Option {
	return func(o *routeOpts) { o.traced = true }
}

// Stats counts what a route has done with its records.
type Stats struct {
	Handled uint64
	Failed  uint64
	Dropped uint64
}

type route struct {
	kind    string
	handler Handler
	queue   chan Record
	opts    routeOpts
	attrs   metric.MeasurementOption

	handled atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// Dispatcher owns the routes of one engagement.
type Dispatcher struct {
	log Logger

	depth    metric.Int64ObservableGauge
	handled  metric.Int64Counter
	failed   metric.Int64Counter
	dropped  metric.Int64Counter
	duration metric.Float64Histogram
	depthCB  metric.Registration

	mu      sync.RWMutex
	routes  map[string]*route
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher that reports on the global OTel meter.
func New(log Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		log:    log,
		routes: make(map[string]*route),
	}
	if err := d.instrument(meter()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) instrument(m metric.Meter) error {
	var err error
	if d.depth, err = m.Int64ObservableGauge("pilot.dispatch.queue.depth",
		metric.WithDescription("Records waiting in a route queue")); err != nil {
		return fmt.Errorf("queue depth gauge: %w", err)
	}
	if d.depthCB, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, r := range d.routes {
			if r.queue != nil {
				o.ObserveInt64(d.depth, int64(len(r.queue)), r.attrs)
			}
		}
		return nil
	}, d.depth); err != nil {
		return fmt.Errorf("queue depth callback: %w", err)
	}
	if d.handled, err = m.Int64Counter("pilot.dispatch.handled",
		metric.WithDescription("Records handled")); err != nil {
		return fmt.Errorf("handled counter: %w", err)
	}
	if d.failed, err = m.Int64Counter("pilot.dispatch.failed",
		metric.WithDescription("Records whose handler returned an error")); err != nil {
		return fmt.Errorf("failed counter: %w", err)
	}
	if d.dropped, err = m.Int64Counter("pilot.dispatch.dropped",
		metric.WithDescription("Records dropped on a full queue")); err != nil {
		return fmt.Errorf("dropped counter: %w", err)
	}
	if d.duration, err = m.Float64Histogram("pilot.dispatch.handle.duration",
		metric.WithDescription("Handler run time"), metric.WithUnit("ms")); err != nil {
		return fmt.Errorf("duration histogram: %w", err)
	}
	return nil
}

// Register routes kind to h. Routes must be registered before the first
// Dispatch.
func (d *Dispatcher) Register(kind string, h Handler, opts ...Option) error {
	r := &route{
		kind:    kind,
		handler: h,
		attrs:   metric.WithAttributes(attribute.String("kind", kind)),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, ok := d.routes[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	if r.opts.queue > 0 {
		r.queue = make(chan Record, r.opts.queue)
		d.workers.Add(1)
		go d.drain(r)
	}
	d.routes[kind] = r
	return nil
}

// Dispatch hands r to its route. For queued routes a nil error means the
// record was accepted, not that it was handled.
func (d *Dispatcher) Dispatch(r Record) error {
	// The read lock is held through the send so Close cannot close the
	// queue underneath it.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	rt, ok := d.routes[r.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}

	if rt.queue == nil {
		return d.handle(rt, r)
	}
	if rt.opts.lossless {
		rt.queue <- r
		return nil
	}
	select {
	case rt.queue <- r:
		return nil
	default:
		if rt.dropped.Add(1) == 1 {
			d.log.Warn("route queue full, dropping records", "kind", rt.kind, "tick", r.Tick)
		}
		d.dropped.Add(context.Background(), 1, rt.attrs)
		return fmt.Errorf("%w: %s", ErrQueueFull, rt.kind)
	}
}

// Handles reports whether kind has a route.
func (d *Dispatcher) Handles(kind string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[kind]
	return ok
}

// Stats returns the counters of kind's route.
func (d *Dispatcher) Stats(kind string) Stats {
	d.mu.RLock()
	rt, ok := d.routes[kind]
	d.mu.RUnlock()
	if !ok {
		return Stats{}
	}
	return Stats{
		Handled: rt.handled.Load(),
		Failed:  rt.failed.Load(),
		Dropped: rt.dropped.Load(),
	}
}

// Close refuses further records and returns once every queue is drained.
// Calling it again is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, rt := range d.routes {
		if rt.queue != nil {
			close(rt.queue)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
	if err := d.depthCB.Unregister(); err != nil {
		d.log.Warn("unregistering queue depth callback", "error", err)
	}
}

func (d *Dispatcher) drain(rt *route) {
	defer d.workers.Done()
	for r := range rt.queue {
		// queued failures have no caller to return to
		_ = d.handle(rt, r)
	}
}

func (d *Dispatcher) handle(rt *route, r Record) error {
	start := time.Now()
	err := rt.handler(r)
	elapsed := time.Since(start)

	ctx := context.Background()
	d.duration.Record(ctx, float64(elapsed.Microseconds())/1000, rt.attrs)
	if err != nil {
		rt.failed.Add(1)
		d.failed.Add(ctx, 1, rt.attrs)
		d.log.Error("record handler failed", "kind", rt.kind, "tick", r.Tick, "error", err)
		return err
	}
	rt.handled.Add(1)
	d.handled.Add(ctx, 1, rt.attrs)
	if rt.opts.traced {
		d.log.Debug("record handled", "kind", rt.kind, "tick", r.Tick, "payload", fmt.Sprintf("%T", r.Payload), "took", elapsed)
	}
	return nil
}
