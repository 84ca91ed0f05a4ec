// Package notify delivers lifecycle events to a sink off the caller's path.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/metrics"
)

// Sink stores or forwards a notification.
type Sink interface {
	Notify(ctx context.Context, recipient, typ, message string) error
}

// DefaultBuffer is the queue size used when none is configured.
const DefaultBuffer = 256

// Dispatcher is a lifecycle.Publisher that queues events and delivers them to
// a Sink from a single worker goroutine. Publish never blocks: when the queue
// is full the event is dropped and counted.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan lifecycle.Event
	done   chan struct{}
}

var _ lifecycle.Publisher = (*Dispatcher)(nil)

// NewDispatcher starts the delivery worker. Call Close to drain and stop it.
func NewDispatcher(sink Sink, buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: 5 * time.Second,
		queue:   make(chan lifecycle.Event, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues ev.
func (d *Dispatcher) Publish(ev lifecycle.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.Notifications.WithLabelValues(string(ev.Type), "dropped").Inc()
		return
	}
	select {
	case d.queue <- ev:
	default:
		metrics.Notifications.WithLabelValues(string(ev.Type), "dropped").Inc()
		d.logger.Warn("notification queue full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.Recipient),
			zap.String("cocoon_id", ev.CocoonID))
	}
}

// Close stops accepting events, delivers what is queued and waits for the
// worker to exit. ctx bounds the wait.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev lifecycle.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Notify(ctx, ev.Recipient, string(ev.Type), ev.Message); err != nil {
		metrics.Notifications.WithLabelValues(string(ev.Type), "error").Inc()
		d.logger.Warn("deliver notification",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.Recipient),
			zap.Error(err))
		return
	}
	metrics.Notifications.WithLabelValues(string(ev.Type), "ok").Inc()
	d.logger.Debug("notification delivered",
		zap.String("type", string(ev.Type)),
		zap.String("recipient", ev.Recipient))
}
