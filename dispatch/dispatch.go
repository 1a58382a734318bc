// Package dispatch implements the Serial Work Dispatcher primitive (spec
// §4.1): a generic, reusable single-consumer ordered queue that drives one
// work handler at a time. It backs both the hub-scope dispatcher (one
// instance over all events) and every extension container's own dispatcher
// (one instance over that container's events and listener tasks).
package dispatch

import "sync"

// State is one of the dispatcher's lifecycle states:
// NotStarted -> Active -> (Paused <-> Active) -> Shutdown (terminal).
type State int32

const (
	NotStarted State = iota
	Active
	Paused
	Shutdown
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Active:
		return "ACTIVE"
	case Paused:
		return "PAUSED"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal diagnostic capability the dispatcher needs.
// eventhub.Logger satisfies this structurally; dispatch does not import the
// root package to avoid a cycle (the root package imports dispatch).
type Logger interface {
	Verbose(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Verbose(string, ...any) {}
func (noopLogger) Error(string, ...any)   {}

// Dispatcher is a generic Serial Work Dispatcher (spec §4.1). At most one
// invocation of the work handler is ever in flight; items are processed in
// offer order; a handler panic is caught, logged, and counted as the item
// having been processed (Invariant D1).
type Dispatcher[T any] struct {
	name    string
	handler func(T)
	initial func() bool
	final   func()
	logger  Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []T
	state     State
	finalOnce sync.Once
}

// Option configures optional Dispatcher behavior.
type Option[T any] func(*Dispatcher[T])

// WithInitialJob runs f exactly once, before the dispatcher starts draining.
// If f returns false (or panics), the dispatcher never begins draining: it
// discards any items queued in the meantime and moves straight to Shutdown,
// mirroring the extension-container startup barrier (spec §4.4: "If
// onRegistered throws, the container transitions to STOPPED and all queued
// events are discarded").
func WithInitialJob[T any](f func() bool) Option[T] {
	return func(d *Dispatcher[T]) { d.initial = f }
}

// WithFinalJob runs f exactly once, during Shutdown.
func WithFinalJob[T any](f func()) Option[T] {
	return func(d *Dispatcher[T]) { d.final = f }
}

// WithLogger attaches a diagnostics logger. Omit to get a no-op logger.
func WithLogger[T any](logger Logger) Option[T] {
	return func(d *Dispatcher[T]) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Dispatcher in state NotStarted. name is used purely for
// diagnostics.
func New[T any](name string, handler func(T), opts ...Option[T]) *Dispatcher[T] {
	d := &Dispatcher[T]{
		name:    name,
		handler: handler,
		logger:  noopLogger{},
		state:   NotStarted,
	}
	d.cond = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the dispatcher's diagnostic name.
func (d *Dispatcher[T]) Name() string { return d.name }

// State returns the dispatcher's current lifecycle state.
func (d *Dispatcher[T]) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Len returns the number of items currently queued, for diagnostics/tests.
func (d *Dispatcher[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Offer enqueues item at the tail, FIFO, and is safe to call from any
// goroutine. It returns true unless the dispatcher is (or becomes, in the
// same call) Shutdown.
func (d *Dispatcher[T]) Offer(item T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Shutdown {
		return false
	}
	d.queue = append(d.queue, item)
	d.logger.Verbose("dispatcher offer", "dispatcher", d.name, "queued", len(d.queue))
	d.cond.Signal()
	return true
}

// Start is valid only from NotStarted. It transitions to Active immediately
// (so Offer is accepted and a second Start is rejected) and, on a dedicated
// goroutine, runs the initial job (if any) before beginning to drain. Items
// offered while the initial job is still running are queued, not delivered,
// until it completes — this is what gives extension containers their
// startup barrier without a separate Paused round-trip.
func (d *Dispatcher[T]) Start() {
	d.mu.Lock()
	if d.state != NotStarted {
		d.mu.Unlock()
		return
	}
	d.state = Active
	d.mu.Unlock()

	go func() {
		if d.initial != nil && !d.safeCallBool(d.initial) {
			d.mu.Lock()
			d.state = Shutdown
			d.queue = nil
			d.mu.Unlock()
			return
		}
		d.drain()
	}()
}

// Pause halts draining without dropping queued items; offers are still
// accepted while paused.
func (d *Dispatcher[T]) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Active {
		d.state = Paused
	}
}

// Resume re-arms draining after Pause.
func (d *Dispatcher[T]) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Paused {
		d.state = Active
		d.cond.Broadcast()
	}
}

// Shutdown drops remaining queued items, refuses future offers, and runs
// the final job (if any) exactly once. It is idempotent.
func (d *Dispatcher[T]) Shutdown() {
	d.mu.Lock()
	if d.state == Shutdown {
		d.mu.Unlock()
		return
	}
	d.state = Shutdown
	d.queue = nil
	d.cond.Broadcast()
	d.mu.Unlock()

	d.finalOnce.Do(func() {
		if d.final != nil {
			d.safeCall(d.final)
		}
	})
}

func (d *Dispatcher[T]) drain() {
	for {
		d.mu.Lock()
		for {
			if d.state == Shutdown {
				d.mu.Unlock()
				return
			}
			if d.state == Active && len(d.queue) > 0 {
				break
			}
			d.cond.Wait()
		}
		item := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.logger.Verbose("dispatcher drain", "dispatcher", d.name)
		d.safeCall(func() { d.handler(item) })
	}
}

func (d *Dispatcher[T]) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher handler panicked", "dispatcher", d.name, "panic", r)
		}
	}()
	f()
}

// safeCallBool runs f, recovering a panic and reporting it as ok == false
// rather than propagating it — used for the initial job, whose failure must
// be observable by Start so it can skip draining.
func (d *Dispatcher[T]) safeCallBool(f func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher initial job panicked", "dispatcher", d.name, "panic", r)
			ok = false
		}
	}()
	return f()
}
