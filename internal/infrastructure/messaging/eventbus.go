// Package messaging implements the in-process event bus the ranking
// service publishes its domain events on. A single-instance service
// needs no broker: subscribers live in the same process as the
// recalculation pipeline.
package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ErrEventBusClosed is returned on any use after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// EventBusConfig tunes the in-memory bus.
type EventBusConfig struct {
	// AsyncMode dispatches handlers on a bounded worker pool instead
	// of the publisher's goroutine.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handlers in async mode.
	WorkerPoolSize int

	Logger *slog.Logger
}

// DefaultEventBusConfig returns async dispatch with ten workers.
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{AsyncMode: true, WorkerPoolSize: 10}
}

// InMemoryEventBus fans events out to registered handlers. It
// implements shared.EventPublisher.
type InMemoryEventBus struct {
	async   bool
	slots   chan struct{}
	logger  *slog.Logger
	metrics *EventBusMetrics

	mu     sync.RWMutex
	byType map[shared.EventType][]shared.EventHandler
	global []shared.EventHandler
	closed bool

	wg sync.WaitGroup
}

// NewInMemoryEventBus creates a bus ready for subscriptions.
func NewInMemoryEventBus(config EventBusConfig) *InMemoryEventBus {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := config.WorkerPoolSize
	if workers <= 0 {
		workers = 10
	}

	return &InMemoryEventBus{
		async:   config.AsyncMode,
		slots:   make(chan struct{}, workers),
		logger:  log,
		metrics: NewEventBusMetrics(),
		byType:  make(map[shared.EventType][]shared.EventHandler),
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.byType[eventType] = append(b.byType[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler that receives every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.global = append(b.global, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish delivers the event to type-specific handlers first, then to
// global ones. In async mode delivery order between handlers is not
// guaranteed.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := append([]shared.EventHandler{}, b.byType[event.EventType()]...)
	targets = append(targets, b.global...)
	b.mu.RUnlock()

	b.metrics.RecordPublish(event.EventType())

	if len(targets) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	for _, h := range targets {
		if b.async {
			b.dispatch(event, h)
		} else {
			b.invoke(event, h)
		}
	}
	return nil
}

// dispatch hands the event to the worker pool. Once accepted here the
// handler is guaranteed to run; Close waits for it.
func (b *InMemoryEventBus) dispatch(event shared.Event, h shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.slots <- struct{}{}
		defer func() { <-b.slots }()
		b.invoke(event, h)
	}()
}

func (b *InMemoryEventBus) invoke(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	h(event)
	b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start))
}

// Close stops accepting events and waits for handlers already
// dispatched to finish. Repeated calls are no-ops.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics exposes the shared counters.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// EventBusMetrics counts publishes and handler invocations.
type EventBusMetrics struct {
	mu sync.RWMutex

	published   int64
	handled     int64
	handlerTime time.Duration
	byType      map[shared.EventType]int64
}

// NewEventBusMetrics creates an empty counter set.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{byType: make(map[shared.EventType]int64)}
}

// RecordPublish counts one published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	m.byType[eventType]++
}

// RecordHandlerExecution counts one handler invocation.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handled++
	m.handlerTime += duration
}

// Published returns how many events of the given type were published.
func (m *EventBusMetrics) Published(eventType shared.EventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byType[eventType]
}
