// Package contextmgr maintains the per-user context aggregate (energy, cycle
// phase, workload, stress, focus) from bus events and answers the decision
// helpers other components ask about it.
package contextmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/eventbus"
	"github.com/pilarhub/eventcore/internal/events"
)

// Level bounds and defaults for a freshly created context.
const (
	MinLevel = 1
	MaxLevel = 10

	DefaultEnergyLevel     = 7
	DefaultWorkloadPercent = 50.0
	DefaultStressLevel     = 5

	contextUpdatedPriority = 3
)

// Store persists contexts.
type Store interface {
	GetOrCreateContext(ctx context.Context, seed *database.UserContext) (*database.UserContext, error)
	ModifyContext(ctx context.Context, seed *database.UserContext, fn func(*database.UserContext) error) (*database.UserContext, error)
}

// Publisher republishes CONTEXT_UPDATED without blocking the handler.
type Publisher interface {
	PublishDetached(ctx context.Context, e *events.Event)
}

// Subscriber is where Register installs the handlers.
type Subscriber interface {
	Subscribe(eventType events.Type, name string, fn eventbus.HandlerFunc) error
}

// Delta is a partial update for UpdateContext. Nil fields are left unchanged.
type Delta struct {
	CyclePhase              *string  `json:"cycle_phase,omitempty"`
	EnergyLevel             *int     `json:"energy_level,omitempty"`
	WorkloadPercent         *float64 `json:"workload_percent,omitempty"`
	InFocusSession          *bool    `json:"in_focus_session,omitempty"`
	PendingTaskCount        *int     `json:"pending_task_count,omitempty"`
	ActiveProjectCount      *int     `json:"active_project_count,omitempty"`
	UnreadNotificationCount *int     `json:"unread_notification_count,omitempty"`
	StressLevel             *int     `json:"stress_level,omitempty"`
	NeedsBreak              *bool    `json:"needs_break,omitempty"`
}

func (d Delta) applyTo(c *database.UserContext) {
	if d.CyclePhase != nil {
		c.CyclePhase = *d.CyclePhase
	}
	if d.EnergyLevel != nil {
		c.EnergyLevel = *d.EnergyLevel
	}
	if d.WorkloadPercent != nil {
		c.WorkloadPercent = *d.WorkloadPercent
	}
	if d.InFocusSession != nil {
		c.InFocusSession = *d.InFocusSession
	}
	if d.PendingTaskCount != nil {
		c.PendingTaskCount = *d.PendingTaskCount
	}
	if d.ActiveProjectCount != nil {
		c.ActiveProjectCount = *d.ActiveProjectCount
	}
	if d.UnreadNotificationCount != nil {
		c.UnreadNotificationCount = *d.UnreadNotificationCount
	}
	if d.StressLevel != nil {
		c.StressLevel = *d.StressLevel
	}
	if d.NeedsBreak != nil {
		c.NeedsBreak = *d.NeedsBreak
	}
}

// Manager owns the context cache of this process. Only one Manager may write a
// given user's context.
type Manager struct {
	store     Store
	publisher Publisher
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]database.UserContext
}

// NewManager creates a Manager. publisher may be nil to disable the
// CONTEXT_UPDATED republish; now defaults to time.Now.
func NewManager(store Store, publisher Publisher, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		now:       now,
		cache:     make(map[string]database.UserContext),
	}
}

// GetContext returns the user's context, creating it with defaults on first access.
func (m *Manager) GetContext(ctx context.Context, userID string) (*database.UserContext, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	m.mu.RLock()
	cached, ok := m.cache[userID]
	m.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	c, err := m.store.GetOrCreateContext(ctx, m.defaults(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}
	m.remember(c)
	return c, nil
}

// UpdateContext applies d to the user's context. A cycle phase is stored under
// its canonical name; an empty phase clears it and an unknown one is rejected.
func (m *Manager) UpdateContext(ctx context.Context, userID string, d Delta) (*database.UserContext, error) {
	if d.CyclePhase != nil && *d.CyclePhase != "" {
		phase, ok := NormalizePhase(*d.CyclePhase)
		if !ok {
			return nil, fmt.Errorf("unknown cycle phase: %q", *d.CyclePhase)
		}
		d.CyclePhase = &phase
	}
	return m.apply(ctx, userID, "", d.applyTo)
}

// ShouldAcceptInterruption loads the context and applies ShouldAcceptInterruption.
func (m *Manager) ShouldAcceptInterruption(ctx context.Context, userID string) (bool, error) {
	c, err := m.GetContext(ctx, userID)
	if err != nil {
		return false, err
	}
	return ShouldAcceptInterruption(c), nil
}

// GetOptimalActivityType loads the context and applies GetOptimalActivityType.
func (m *Manager) GetOptimalActivityType(ctx context.Context, userID string) (ActivityType, error) {
	c, err := m.GetContext(ctx, userID)
	if err != nil {
		return "", err
	}
	return GetOptimalActivityType(c), nil
}

// NeedsBreak loads the context and applies NeedsBreak.
func (m *Manager) NeedsBreak(ctx context.Context, userID string) (bool, error) {
	c, err := m.GetContext(ctx, userID)
	if err != nil {
		return false, err
	}
	return NeedsBreak(c), nil
}

func (m *Manager) defaults(userID string) *database.UserContext {
	c := &database.UserContext{
		UserID:          userID,
		EnergyLevel:     DefaultEnergyLevel,
		WorkloadPercent: DefaultWorkloadPercent,
		StressLevel:     DefaultStressLevel,
	}
	m.stampTemporal(c)
	return c
}

// stampTemporal recomputes the clock-derived fields from the wall clock.
func (m *Manager) stampTemporal(c *database.UserContext) {
	now := m.now()
	c.HourOfDay = now.Hour()
	c.DayOfWeek = int(now.Weekday())
	c.ProductivePeriod = productivePeriod(c.HourOfDay)
	c.UpdatedAt = now.UTC()
}

func (m *Manager) remember(c *database.UserContext) {
	m.mu.Lock()
	m.cache[c.UserID] = *c
	m.mu.Unlock()
}

// apply runs mutate on the locked row, clamps levels, stamps the clock fields
// and republishes the change as CONTEXT_UPDATED.
func (m *Manager) apply(ctx context.Context, userID string, cause events.Type, mutate func(*database.UserContext)) (*database.UserContext, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	var before database.UserContext
	updated, err := m.store.ModifyContext(ctx, m.defaults(userID), func(c *database.UserContext) error {
		before = *c
		mutate(c)
		normalize(c)
		m.stampTemporal(c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update context: %w", err)
	}
	m.remember(updated)

	changes := diff(&before, updated)
	slog.Debug("Context updated",
		"user_id", userID,
		"cause", cause,
		"changes", changes,
	)

	if m.publisher != nil {
		payload := map[string]any{
			"userId":  userID,
			"changes": changes,
		}
		if cause != "" {
			payload["cause"] = string(cause)
		}
		m.publisher.PublishDetached(ctx, &events.Event{
			Type:         events.ContextUpdated,
			OriginModule: events.ModuleContext,
			UserID:       userID,
			Payload:      payload,
			Priority:     contextUpdatedPriority,
		})
	}
	return updated, nil
}

func normalize(c *database.UserContext) {
	c.EnergyLevel = clamp(c.EnergyLevel, MinLevel, MaxLevel)
	c.StressLevel = clamp(c.StressLevel, MinLevel, MaxLevel)
	if c.WorkloadPercent < 0 {
		c.WorkloadPercent = 0
	}
	if c.PendingTaskCount < 0 {
		c.PendingTaskCount = 0
	}
	if c.ActiveProjectCount < 0 {
		c.ActiveProjectCount = 0
	}
	if c.UnreadNotificationCount < 0 {
		c.UnreadNotificationCount = 0
	}
}

// diff lists the non-temporal fields that changed, keyed by column name.
func diff(before, after *database.UserContext) map[string]any {
	changes := make(map[string]any)
	if before.CyclePhase != after.CyclePhase {
		changes["cycle_phase"] = after.CyclePhase
	}
	if before.EnergyLevel != after.EnergyLevel {
		changes["energy_level"] = after.EnergyLevel
	}
	if before.WorkloadPercent != after.WorkloadPercent {
		changes["workload_percent"] = after.WorkloadPercent
	}
	if before.InFocusSession != after.InFocusSession {
		changes["in_focus_session"] = after.InFocusSession
	}
	if before.PendingTaskCount != after.PendingTaskCount {
		changes["pending_task_count"] = after.PendingTaskCount
	}
	if before.ActiveProjectCount != after.ActiveProjectCount {
		changes["active_project_count"] = after.ActiveProjectCount
	}
	if before.UnreadNotificationCount != after.UnreadNotificationCount {
		changes["unread_notification_count"] = after.UnreadNotificationCount
	}
	if before.StressLevel != after.StressLevel {
		changes["stress_level"] = after.StressLevel
	}
	if before.NeedsBreak != after.NeedsBreak {
		changes["needs_break"] = after.NeedsBreak
	}
	return changes
}

func productivePeriod(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
