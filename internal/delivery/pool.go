package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pilarhub/eventcore/internal/delivery/retry"
	"github.com/pilarhub/eventcore/pkg/metrics"
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultSendTimeout = 30 * time.Second
)

// Recorder receives delivery counters.
type Recorder interface {
	IncrementCustom(name string)
}

// NoOpMetrics discards delivery counters.
type NoOpMetrics struct{}

func (NoOpMetrics) IncrementCustom(string) {}

var (
	_ Recorder = NoOpMetrics{}
	_ Recorder = (*metrics.Collector)(nil)
)

// PoolOptions configures a Pool. Zero values take the defaults.
type PoolOptions struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	Retry       *retry.Config
	Metrics     Recorder
}

// Pool runs deliveries on a fixed set of workers. Submit never blocks; a full
// queue drops the request. Delivery errors are logged, never returned.
type Pool struct {
	registry *Registry
	opts     PoolOptions
	retryCfg retry.Config

	jobs chan *Request
	wg   sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewPool creates a pool over registry. Call Start before submitting.
func NewPool(registry *Registry, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NoOpMetrics{}
	}
	retryCfg := retry.DefaultConfig()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}
	return &Pool{
		registry: registry,
		opts:     opts,
		retryCfg: retryCfg,
		jobs:     make(chan *Request, opts.QueueSize),
	}
}

// Start launches the workers. They stop once Stop is called and the queue
// has drained, or when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	slog.Info("Starting delivery workers",
		"workers", p.opts.Workers,
		"queue_size", p.opts.QueueSize,
		"channels", p.registry.Channels(),
	)
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}
}

// Submit queues req. It reports false when the pool is stopped or full.
func (p *Pool) Submit(req *Request) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		slog.Warn("Delivery pool stopped, dropping request",
			"channel", req.Channel,
			"user_id", req.UserID,
		)
		return false
	}

	select {
	case p.jobs <- req:
		return true
	default:
		p.opts.Metrics.IncrementCustom("delivery_dropped")
		slog.Warn("Delivery queue full, dropping request",
			"channel", req.Channel,
			"user_id", req.UserID,
		)
		return false
	}
}

// Stop closes the queue and waits for the workers to finish what is queued.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	slog.Info("Delivery workers stopped")
}

// QueueLen reports how many requests are waiting.
func (p *Pool) QueueLen() int {
	return len(p.jobs)
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.jobs:
			if !ok {
				return
			}
			p.deliver(ctx, req)
		}
	}
}

func (p *Pool) deliver(ctx context.Context, req *Request) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.Metrics.IncrementCustom(fmt.Sprintf("delivery_failed_%s", req.Channel))
			slog.Error("Delivery panicked", "channel", req.Channel, "user_id", req.UserID, "panic", r)
		}
	}()

	sender, ok := p.registry.Get(req.Channel)
	if !ok {
		slog.Warn("No sender registered for channel, skipping", "channel", req.Channel)
		return
	}

	notificationID := ""
	if req.Notification != nil {
		notificationID = req.Notification.ID
	}
	operation := fmt.Sprintf("%s:%s", req.Channel, notificationID)

	err := retry.Do(ctx, p.retryCfg, operation, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
		defer cancel()
		return sender.Send(sendCtx, req)
	})
	if err != nil {
		p.opts.Metrics.IncrementCustom(fmt.Sprintf("delivery_failed_%s", req.Channel))
		slog.Error("Delivery failed",
			"channel", req.Channel,
			"user_id", req.UserID,
			"notification_id", notificationID,
			"error", err,
		)
		return
	}

	p.opts.Metrics.IncrementCustom(fmt.Sprintf("delivery_sent_%s", req.Channel))
	slog.Debug("Delivered notification",
		"channel", req.Channel,
		"user_id", req.UserID,
		"notification_id", notificationID,
	)
}
