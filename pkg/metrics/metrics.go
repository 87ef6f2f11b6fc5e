// Package metrics collects event-core counters and periodically writes a JSON
// snapshot to Redis so dashboards in other processes can read it.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for component metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// Snapshot is the JSON document written to Redis.
type Snapshot struct {
	Component   string    `json:"component"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Counters (monotonically increasing since start)
	EventsPublished  uint64 `json:"events_published"`
	EventsDispatched uint64 `json:"events_dispatched"`
	HandlerFailures  uint64 `json:"handler_failures"`
	Errors           uint64 `json:"errors"`

	// Dispatch rate over the last report interval.
	EventsPerSecond float64 `json:"events_per_second"`

	// Average time from dequeue to "processed", in nanoseconds.
	AvgDispatchLatencyNs float64 `json:"avg_dispatch_latency_ns"`

	Counters map[string]uint64 `json:"counters,omitempty"`
}

// Collector collects counters for one component and reports them to Redis.
// A nil Redis client turns reporting off while keeping the counters usable.
type Collector struct {
	component      string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	eventsPublished  atomic.Uint64
	eventsDispatched atomic.Uint64
	handlerFailures  atomic.Uint64
	errors           atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	rateMu             sync.Mutex
	lastReportTime     time.Time
	lastDispatchedSeen uint64

	countersMu sync.RWMutex
	counters   map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector for the named component.
func NewCollector(component string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		component:      component,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		counters:       make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
// Must be called before Start.
func (c *Collector) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		c.reportInterval = interval
	}
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordPublished counts an event accepted by Publish.
func (c *Collector) RecordPublished() {
	c.eventsPublished.Add(1)
}

// RecordDispatched counts an event whose handlers all ran, with its dispatch latency.
func (c *Collector) RecordDispatched(latency time.Duration) {
	c.eventsDispatched.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordHandlerFailure counts a handler that returned an error or panicked.
func (c *Collector) RecordHandlerFailure() {
	c.handlerFailures.Add(1)
}

// RecordError counts any other failure worth surfacing on a dashboard.
func (c *Collector) RecordError() {
	c.errors.Add(1)
}

// IncrementCustom increments a named counter.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a named counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.countersMu.RLock()
	counter, exists := c.counters[name]
	c.countersMu.RUnlock()

	if !exists {
		c.countersMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.counters[name]; !exists {
			counter = &atomic.Uint64{}
			c.counters[name] = counter
		}
		c.countersMu.Unlock()
	}
	counter.Add(value)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *Snapshot {
	now := time.Now().UTC()
	dispatched := c.eventsDispatched.Load()

	c.rateMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(dispatched-c.lastDispatchedSeen) / elapsed
	}
	c.rateMu.Unlock()

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.countersMu.RLock()
	counters := make(map[string]uint64, len(c.counters))
	for name, counter := range c.counters {
		counters[name] = counter.Load()
	}
	c.countersMu.RUnlock()

	return &Snapshot{
		Component:            c.component,
		StartedAt:            c.startedAt,
		LastUpdated:          now,
		EventsPublished:      c.eventsPublished.Load(),
		EventsDispatched:     dispatched,
		HandlerFailures:      c.handlerFailures.Load(),
		Errors:               c.errors.Load(),
		EventsPerSecond:      rate,
		AvgDispatchLatencyNs: avgLatencyNs,
		Counters:             counters,
	}
}

// Key returns the Redis key the snapshot is written under.
func (c *Collector) Key() string {
	return MetricsKeyPrefix + c.component
}

func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snap := c.GetSnapshot()

	c.rateMu.Lock()
	c.lastReportTime = snap.LastUpdated
	c.lastDispatchedSeen = snap.EventsDispatched
	c.rateMu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Failed to marshal metrics", "component", c.component, "error", err)
		return
	}

	if err := c.redis.Set(ctx, c.Key(), data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "component", c.component, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "component", c.component, "key", c.Key())
}
