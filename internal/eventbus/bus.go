// Package eventbus is the in-process publish/subscribe router. Publish writes
// the event to the log and enqueues it; a single consumer loop runs the
// subscribed handlers in registration order and marks the event processed.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pilarhub/eventcore/internal/detach"
	"github.com/pilarhub/eventcore/internal/events"
)

const (
	// DefaultHandlerTimeout bounds the context each handler receives.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultRecentLimit is used by GetRecentEvents when limit <= 0.
	DefaultRecentLimit = 50
	// MaxRecentLimit caps GetRecentEvents.
	MaxRecentLimit = 1000
	// DefaultStatsWindowHours is used by GetEventStats when windowHours <= 0.
	DefaultStatsWindowHours = 24

	storeTimeout = 10 * time.Second
)

// ErrAlreadyRunning is returned by StartProcessing when the loop is running.
var ErrAlreadyRunning = errors.New("event bus is already processing")

// ErrStopping is returned by StartProcessing while a previous loop is still
// draining after a StopProcessing that timed out.
var ErrStopping = errors.New("event bus is still draining")

// HandlerFunc handles one delivered event. A returned error or panic is logged
// and counted; it never stops sibling handlers or the loop.
type HandlerFunc func(ctx context.Context, e *events.Event) error

// Store is the event log the bus persists to.
type Store interface {
	InsertEvent(ctx context.Context, e *events.Event) error
	MarkEventProcessed(ctx context.Context, id string) error
	GetRecentEvents(ctx context.Context, eventType events.Type, limit int) ([]*events.Event, error)
	GetPendingEvents(ctx context.Context, limit int) ([]*events.Event, error)
	GetEventStats(ctx context.Context, windowHours int) (*events.Stats, error)
}

// Broadcaster mirrors published events to listeners in other processes.
type Broadcaster interface {
	Broadcast(ctx context.Context, e *events.Event) error
}

// Options configures a Bus. Zero values select the defaults.
type Options struct {
	HandlerTimeout time.Duration
	Broadcaster    Broadcaster
	Metrics        Recorder
	Now            func() time.Time
}

type subscription struct {
	name string
	fn   HandlerFunc
}

// Bus routes events from publishers to subscribed handlers.
type Bus struct {
	store          Store
	broadcaster    Broadcaster
	metrics        Recorder
	now            func() time.Time
	handlerTimeout time.Duration

	queue    *queue
	detached *detach.Group

	subsMu sync.RWMutex
	subs   map[events.Type][]subscription

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Bus writing to store.
func New(store Store, opts Options) *Bus {
	b := &Bus{
		store:          store,
		broadcaster:    opts.Broadcaster,
		metrics:        opts.Metrics,
		now:            opts.Now,
		handlerTimeout: opts.HandlerTimeout,
		queue:          newQueue(),
		subs:           make(map[events.Type][]subscription),
	}
	if b.metrics == nil {
		b.metrics = NoOpMetrics{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.handlerTimeout <= 0 {
		b.handlerTimeout = DefaultHandlerTimeout
	}
	b.detached = detach.NewGroup(func(op string, err error) {
		b.metrics.RecordError()
	})
	return b
}

// Subscribe registers fn under name for eventType. Handlers run in
// registration order. Registering an existing (eventType, name) pair again is
// a no-op and keeps the original position.
func (b *Bus) Subscribe(eventType events.Type, name string, fn HandlerFunc) error {
	if !eventType.Valid() {
		return fmt.Errorf("unknown event type: %q", eventType)
	}
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("handler func cannot be nil")
	}

	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	for _, s := range b.subs[eventType] {
		if s.name == name {
			slog.Debug("Handler already subscribed", "event_type", eventType, "handler", name)
			return nil
		}
	}
	b.subs[eventType] = append(b.subs[eventType], subscription{name: name, fn: fn})
	slog.Info("Handler subscribed", "event_type", eventType, "handler", name)
	return nil
}

// Unsubscribe removes the named handler. It reports whether one was removed.
func (b *Bus) Unsubscribe(eventType events.Type, name string) bool {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	list := b.subs[eventType]
	for i, s := range list {
		if s.name != name {
			continue
		}
		next := make([]subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, eventType)
		} else {
			b.subs[eventType] = next
		}
		slog.Info("Handler unsubscribed", "event_type", eventType, "handler", name)
		return true
	}
	return false
}

// Handlers returns the handler names for eventType in invocation order.
func (b *Bus) Handlers(eventType events.Type) []string {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()

	names := make([]string, 0, len(b.subs[eventType]))
	for _, s := range b.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

// Publish persists e and queues it for delivery, returning the event id.
// ID, CreatedAt and a zero Priority are filled in when unset. Store errors are
// returned; broadcast runs detached and its errors are only logged.
// No handler runs on the caller's goroutine.
func (b *Bus) Publish(ctx context.Context, e *events.Event) (string, error) {
	if e == nil {
		return "", fmt.Errorf("event cannot be nil")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = b.now().UTC()
	}
	if e.Priority == 0 {
		e.Priority = events.DefaultPriority
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("invalid event: %w", err)
	}

	if err := b.store.InsertEvent(ctx, e); err != nil {
		b.metrics.RecordError()
		return "", fmt.Errorf("failed to persist event: %w", err)
	}

	queued := *e
	queued.Payload = maps.Clone(e.Payload)
	b.queue.push(&queued)
	b.metrics.RecordPublished()

	slog.Debug("Event published",
		"event_id", e.ID,
		"event_type", e.Type,
		"origin_module", e.OriginModule,
		"priority", e.Priority,
	)

	if b.broadcaster != nil {
		mirrored := queued
		b.detached.Go(ctx, "broadcast "+string(e.Type), func(ctx context.Context) error {
			return b.broadcaster.Broadcast(ctx, &mirrored)
		})
	}

	return e.ID, nil
}

// PublishDetached publishes e on a detached task and returns immediately.
// Failures, including store errors, are logged and never reach the caller.
func (b *Bus) PublishDetached(ctx context.Context, e *events.Event) {
	op := "publish"
	if e != nil {
		op = "publish " + string(e.Type)
	}
	b.detached.Go(ctx, op, func(ctx context.Context) error {
		_, err := b.Publish(ctx, e)
		return err
	})
}

// StartProcessing starts the consumer loop. ctx supplies values to handlers;
// cancelling it does not stop the loop, StopProcessing does.
func (b *Bus) StartProcessing(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.running {
		return ErrAlreadyRunning
	}
	if b.doneCh != nil {
		select {
		case <-b.doneCh:
		default:
			return ErrStopping
		}
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	go b.run(context.WithoutCancel(ctx), b.stopCh, b.doneCh)
	slog.Info("Event bus processing started")
	return nil
}

// StopProcessing stops the consumer loop after draining the queue. Events
// enqueued by detached tasks while draining are delivered too. It returns once
// the queue is empty and no handler is running, or with ctx's error if ctx ends
// first; the drain continues in the background in that case and the bus
// cannot be restarted until it finishes. Calling it again waits for that drain.
func (b *Bus) StopProcessing(ctx context.Context) error {
	b.runMu.Lock()
	if b.running {
		b.running = false
		close(b.stopCh)
	}
	done := b.doneCh
	b.runMu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		slog.Info("Event bus processing stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain event queue: %w", ctx.Err())
	}
}

// QueueLen returns the number of events waiting for delivery.
func (b *Bus) QueueLen() int {
	return b.queue.len()
}

// RecoverPending enqueues up to limit stored events that were never marked
// processed, oldest first. Call it before producers start publishing.
func (b *Bus) RecoverPending(ctx context.Context, limit int) (int, error) {
	pending, err := b.store.GetPendingEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}
	for _, e := range pending {
		b.queue.push(e)
	}
	if len(pending) > 0 {
		slog.Info("Recovered pending events", "count", len(pending))
	}
	return len(pending), nil
}

// GetRecentEvents returns the newest events, optionally of one type.
func (b *Bus) GetRecentEvents(ctx context.Context, eventType events.Type, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	list, err := b.store.GetRecentEvents(ctx, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	return list, nil
}

// GetEventStats summarises the log over the last windowHours.
func (b *Bus) GetEventStats(ctx context.Context, windowHours int) (*events.Stats, error) {
	if windowHours <= 0 {
		windowHours = DefaultStatsWindowHours
	}
	stats, err := b.store.GetEventStats(ctx, windowHours)
	if err != nil {
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}
	return stats, nil
}

func (b *Bus) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		e, ok := b.queue.pop(stop)
		if !ok {
			break
		}
		b.dispatch(ctx, e)
	}

	// Drain: detached tasks still running may enqueue more events.
	for {
		for {
			e, ok := b.queue.tryPop()
			if !ok {
				break
			}
			b.dispatch(ctx, e)
		}
		b.detached.Wait()
		if b.queue.len() == 0 {
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e *events.Event) {
	start := time.Now()

	b.subsMu.RLock()
	handlers := append([]subscription(nil), b.subs[e.Type]...)
	b.subsMu.RUnlock()

	for _, h := range handlers {
		if err := b.invoke(ctx, h, e); err != nil {
			b.metrics.RecordHandlerFailure()
			slog.Error("Event handler failed",
				"event_id", e.ID,
				"event_type", e.Type,
				"handler", h.name,
				"error", err,
			)
		}
	}

	mctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := b.store.MarkEventProcessed(mctx, e.ID); err != nil {
		b.metrics.RecordError()
		slog.Error("Failed to mark event processed", "event_id", e.ID, "error", err)
	}

	b.metrics.RecordDispatched(time.Since(start))
	slog.Debug("Event dispatched",
		"event_id", e.ID,
		"event_type", e.Type,
		"handlers", len(handlers),
		"duration", time.Since(start),
	)
}

func (b *Bus) invoke(ctx context.Context, h subscription, e *events.Event) (err error) {
	hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.fn(hctx, e)
}
