package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventResponseSent     EventType = "response_sent"
	EventConnectionFailed EventType = "connection_failed"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Method    string
	Status    int
	BodyBytes int64
	Duration  time.Duration
}

// Collector moves request events off the worker goroutines. Events are fed
// into the in-memory Stats and, when configured, the Prometheus collectors.
type Collector struct {
	eventCh chan MetricEvent
	stats   *Stats
	metrics *Metrics
	logger  *slog.Logger
	done    chan struct{}
}

func NewCollector(bufferSize int, m *Metrics, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		stats:   NewStats(),
		metrics: m,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Emit queues an event without blocking. Events are dropped when the buffer
// is full. Emit on a nil Collector is a no-op.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event",
			slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

// Wait blocks until the collector has drained and stopped.
func (c *Collector) Wait() {
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")
	defer close(c.done)

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventResponseSent:
		c.stats.RecordResponse(event.Method, event.Status, event.BodyBytes, event.Duration)
		c.metrics.ResponseWritten(event.Method, event.Status, event.BodyBytes)

	case EventConnectionFailed:
		c.stats.RecordFailure()
		c.metrics.ConnectionFailed()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.stats.Snapshot()
}
