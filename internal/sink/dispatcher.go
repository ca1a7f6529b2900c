package sink

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"authwatch/internal/model"
)

// Dispatcher decouples the engine from sink I/O: alerts are queued and a
// single worker delivers them to every sink. Delivery failures are logged
// per alert and sink, never retried, never fatal.
type Dispatcher struct {
	logger *slog.Logger
	sinks  []Sink
	queue  chan model.Alert
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(queueSize int, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	d := &Dispatcher{
		logger: logger,
		sinks:  sinks,
		queue:  make(chan model.Alert, queueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit queues an alert without blocking. Returns false when the queue is
// full or the dispatcher is closed; the alert is then lost (at-most-once).
func (d *Dispatcher) Emit(alert model.Alert) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	select {
	case d.queue <- alert:
		d.mu.Unlock()
		return true
	default:
		d.mu.Unlock()
		if d.logger != nil {
			d.logger.Warn("alert queue full, dropping alert", "identity", alert.Identity, "severity", alert.Severity)
		}
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for alert := range d.queue {
		for _, s := range d.sinks {
			if err := s.Deliver(context.Background(), alert); err != nil {
				if d.logger != nil {
					d.logger.Warn("alert delivery failed",
						"sink", s.Name(),
						"identity", alert.Identity,
						"err", err,
					)
				}
			}
		}
	}
}

// Close stops accepting alerts, flushes the queue, and closes any sink that
// holds resources.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && d.logger != nil {
				d.logger.Warn("sink close failed", "sink", s.Name(), "err", err)
			}
		}
	}
	return nil
}
