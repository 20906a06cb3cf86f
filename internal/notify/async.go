package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Async decouples a slow sink from the caller. Report never blocks: when
// the buffer is full the event is dropped and counted.
type Async struct {
	next    Sink
	logger  *slog.Logger
	events  chan Event
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsync starts a worker delivering to next with a buffer of size events.
func NewAsync(next Sink, size int, logger *slog.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{
		next:   next,
		logger: logger.With("component", "async_notifier"),
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		a.deliver(ev)
	}
}

func (a *Async) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("sink panic recovered", "panic", r, "kind", string(ev.Kind))
		}
	}()
	// The producer's context may already be gone; delivery outlives it.
	a.next.Report(context.Background(), ev)
}

// Report enqueues ev or drops it if the buffer is full.
func (a *Async) Report(ctx context.Context, ev Event) {
	select {
	case a.events <- ev:
	default:
		n := a.dropped.Add(1)
		a.logger.WarnContext(ctx, "notification dropped", "kind", string(ev.Kind), "dropped", n)
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain.
// Report must not be called after Close.
func (a *Async) Close() {
	a.closeOnce.Do(func() { close(a.events) })
	<-a.done
}
