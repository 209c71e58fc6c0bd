// Package host provides the single-threaded event loop the companion runs on.
//
// Every event handler and every deferred action is posted to one Loop and
// executed on its goroutine, one at a time, in posting order.
package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/textwatch/internal/groutine"
)

// ErrStopped is returned by Post once the loop has stopped.
var ErrStopped = errors.New("event loop stopped")

// DefaultCapacity is the default event buffer size.
const DefaultCapacity = 64

// Metrics are loop counters. All reads are atomic.
type Metrics struct {
	Posted    int64
	Processed int64
	Panics    int64
}

// Loop serializes event processing on a single goroutine.
type Loop struct {
	name   string
	events chan func()
	logger *logrus.Logger

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}

	metrics Metrics
}

// NewLoop creates a loop with the given buffer capacity. Post blocks while
// the buffer is full.
func NewLoop(name string, capacity int, logger *logrus.Logger) *Loop {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loop{
		name:    name,
		events:  make(chan func(), capacity),
		logger:  logger,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Post queues fn for execution on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}

	select {
	case l.events <- fn:
		atomic.AddInt64(&l.metrics.Posted, 1)
		return nil
	case <-l.stopped:
		return ErrStopped
	}
}

// Start runs the loop on a new goroutine labelled with the loop name.
// The loop stops when ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	groutine.Go(ctx, l.name, l.run)
}

// Run processes events on the calling goroutine until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	l.logger.WithField("loop", l.name).Debug("Event loop started")

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			l.logger.WithField("loop", l.name).Debug("Event loop stopped")
			return
		case <-l.stopped:
			l.logger.WithField("loop", l.name).Debug("Event loop stopped")
			return
		case fn := <-l.events:
			l.execute(fn)
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&l.metrics.Panics, 1)
			l.logger.WithFields(logrus.Fields{
				"loop":  l.name,
				"panic": r,
			}).Error("Event handler panicked")
		}
		atomic.AddInt64(&l.metrics.Processed, 1)
	}()
	fn()
}

// Stop stops the loop. Events still buffered are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
	})
}

// Done is closed once the loop goroutine has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Call posts fn and waits until it has run. It must not be called from the
// loop goroutine, and a Call made before Start blocks until the loop starts.
func (l *Loop) Call(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// GetMetrics returns a snapshot of the loop counters.
func (l *Loop) GetMetrics() Metrics {
	return Metrics{
		Posted:    atomic.LoadInt64(&l.metrics.Posted),
		Processed: atomic.LoadInt64(&l.metrics.Processed),
		Panics:    atomic.LoadInt64(&l.metrics.Panics),
	}
}
