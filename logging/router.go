package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

const (
	sinkBacklogMin = 32
	sinkBacklogMax = 1024

	sinkRetryBase = 250 * time.Millisecond
	sinkRetryMax  = 30 * time.Second
)

// Router fans published events out to its sinks. Publish never blocks: a
// full queue drops the event and counts it. Each sink drains its own
// backlog, so a slow audit database does not hold up the console.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	fields   map[string]any

	queue  chan Event
	sinks  []*sinkWorker
	stop   context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup

	events     atomic.Uint64
	dropped    atomic.Uint64
	warnings   atomic.Uint64
	errors     atomic.Uint64
	nextDropAt atomic.Int64
}

// RouterStats counts events accepted past the severity filter.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	WarnTotal    uint64
	ErrorTotal   uint64
	// SinkDropped counts events a sink's backlog refused, by sink name.
	SinkDropped map[string]uint64
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 512
	}
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		fields:   cfg.CloneFields(),
		queue:    make(chan Event, size),
	}
	backlog := max(sinkBacklogMin, min(size, sinkBacklogMax))
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.sinks = append(r.sinks, &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, backlog),
			fallback: r.fallback,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	for _, w := range r.sinks {
		r.wg.Add(1)
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(w)
	}
	r.wg.Add(1)
	go r.dispatch(ctx)
	return r, nil
}

// Publish stamps the event with the trace and replication channel carried
// by ctx and queues it.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	if ctx != nil {
		if event.TraceID == "" {
			if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
				event.TraceID = sc.TraceID().String()
			}
		}
		if event.Channel == "" {
			event.Channel = ChannelFromContext(ctx)
		}
	}
	select {
	case r.queue <- event:
	default:
		r.drop(event)
	}
}

func (r *Router) dispatch(ctx context.Context) {
	defer r.wg.Done()
	defer func() {
		for _, w := range r.sinks {
			close(w.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	event = r.stamp(event)
	r.events.Add(1)
	switch {
	case event.Severity >= SeverityError:
		r.errors.Add(1)
	case event.Severity == SeverityWarn:
		r.warnings.Add(1)
	}
	for _, w := range r.sinks {
		w.enqueue(event)
	}
}

// stamp fills in the time, the local peer and the configured fields. Fields
// already present in Extra win.
func (r *Router) stamp(event Event) Event {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if event.Peer == "" {
		event.Peer = r.cfg.Peer
	}
	if len(r.fields) == 0 {
		return event
	}
	event = cloneForFields(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(r.fields))
	}
	for k, v := range r.fields {
		if _, ok := event.Extra[k]; !ok {
			event.Extra[k] = v
		}
	}
	return event
}

func (r *Router) drop(event Event) {
	r.dropped.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextDropAt.Load()
	if now < next || !r.nextDropAt.CompareAndSwap(next, now+interval.Nanoseconds()) {
		return
	}
	r.fallback.Printf("queue full, dropping %s (peer=%s channel=%s, %d dropped so far)", event.Type, event.Peer, event.Channel, r.dropped.Load())
}

// Close drains queued events into the sinks and then closes them. A second
// call waits for ctx.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	r.stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.sinks {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.events.Load(),
		DroppedTotal: r.dropped.Load(),
		WarnTotal:    r.warnings.Load(),
		ErrorTotal:   r.errors.Load(),
		SinkDropped:  make(map[string]uint64, len(r.sinks)),
	}
	for _, w := range r.sinks {
		stats.SinkDropped[w.name] = w.dropped.Load()
	}
	return stats
}

func (r *Router) Sink(name string) Sink {
	for _, w := range r.sinks {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger
	dropped  atomic.Uint64

	failures int
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		if w.dropped.Add(1) == 1 {
			w.fallback.Printf("sink %s backlog full, dropping %s", w.name, event.Type)
		}
	}
}

// run writes events in order. After a failed write the worker backs off
// before the next one, doubling up to sinkRetryMax.
func (w *sinkWorker) run() {
	for event := range w.events {
		if err := w.sink.Write(event); err != nil {
			w.failures++
			delay := min(sinkRetryBase<<min(w.failures-1, 7), sinkRetryMax)
			w.fallback.Printf("sink %s failed on %s: %v (pausing %s)", w.name, event.Type, err, delay)
			time.Sleep(delay)
			continue
		}
		w.failures = 0
	}
}
