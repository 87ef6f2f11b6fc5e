package contextmgr

import (
	"context"
	"fmt"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/eventbus"
	"github.com/pilarhub/eventcore/internal/events"
)

const handlerName = "context-manager"

// Subscriptions returns the event types the manager reacts to. CONTEXT_UPDATED
// is never among them, so the manager's own republish cannot loop back.
func (m *Manager) Subscriptions() map[events.Type]eventbus.HandlerFunc {
	return map[events.Type]eventbus.HandlerFunc{
		events.CyclePhaseChanged:   m.onCyclePhaseChanged,
		events.EnergyLow:           m.onEnergyLow,
		events.CapacityCritical:    m.onCapacityCritical,
		events.CapacityWarning:     m.onCapacityWarning,
		events.TaskCreated:         m.onTaskCreated,
		events.TaskCompleted:       m.onTaskCompleted,
		events.FocusSessionStarted: m.onFocusSessionStarted,
		events.FocusSessionEnded:   m.onFocusSessionEnded,
		events.ProjectCreated:      m.onProjectCreated,
		events.ProjectCompleted:    m.onProjectCompleted,
		events.WellnessUpdated:     m.onWellnessUpdated,
	}
}

// Register subscribes every handler on bus.
func (m *Manager) Register(bus Subscriber) error {
	for eventType, fn := range m.Subscriptions() {
		if eventType == events.ContextUpdated {
			continue
		}
		if err := bus.Subscribe(eventType, handlerName, fn); err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", eventType, err)
		}
	}
	return nil
}

func requireUser(e *events.Event) (string, error) {
	userID := e.ResolveUserID()
	if userID == "" {
		return "", fmt.Errorf("event %s has no user id", e.ID)
	}
	return userID, nil
}

func (m *Manager) onCyclePhaseChanged(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	p, err := events.DecodeCyclePhase(e.Payload)
	if err != nil {
		return err
	}
	phase, ok := NormalizePhase(p.NewPhase)
	if !ok {
		return fmt.Errorf("unknown cycle phase: %q", p.NewPhase)
	}

	fraction := phaseEnergy[phase]
	if p.ExpectedEnergy != nil {
		fraction = *p.ExpectedEnergy
	}

	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.CyclePhase = phase
		c.EnergyLevel = energyFromFraction(fraction)
	})
	return err
}

func (m *Manager) onEnergyLow(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	w, err := events.DecodeWellness(e.Payload)
	if err != nil {
		return err
	}

	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		if w.EnergyLevel != nil {
			c.EnergyLevel = *w.EnergyLevel
		}
		c.StressLevel += 2
		c.NeedsBreak = true
	})
	return err
}

func (m *Manager) onCapacityCritical(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	p, err := events.DecodeCapacity(e.Payload)
	if err != nil {
		return err
	}

	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.WorkloadPercent = p.WorkloadPercent
		c.StressLevel = MaxLevel
		c.NeedsBreak = true
	})
	return err
}

func (m *Manager) onCapacityWarning(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	p, err := events.DecodeCapacity(e.Payload)
	if err != nil {
		return err
	}

	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.WorkloadPercent = p.WorkloadPercent
		c.StressLevel++
	})
	return err
}

func (m *Manager) onTaskCreated(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.PendingTaskCount++
	})
	return err
}

func (m *Manager) onTaskCompleted(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.PendingTaskCount--
		c.StressLevel--
	})
	return err
}

func (m *Manager) onFocusSessionStarted(ctx context.Context, e *events.Event) error {
	return m.setFocus(ctx, e, true)
}

func (m *Manager) onFocusSessionEnded(ctx context.Context, e *events.Event) error {
	return m.setFocus(ctx, e, false)
}

func (m *Manager) setFocus(ctx context.Context, e *events.Event, focused bool) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.InFocusSession = focused
	})
	return err
}

func (m *Manager) onProjectCreated(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.ActiveProjectCount++
	})
	return err
}

func (m *Manager) onProjectCompleted(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		c.ActiveProjectCount--
	})
	return err
}

func (m *Manager) onWellnessUpdated(ctx context.Context, e *events.Event) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	w, err := events.DecodeWellness(e.Payload)
	if err != nil {
		return err
	}

	_, err = m.apply(ctx, userID, e.Type, func(c *database.UserContext) {
		if w.EnergyLevel != nil {
			c.EnergyLevel = *w.EnergyLevel
		}
		if w.StressLevel != nil {
			c.StressLevel = *w.StressLevel
		}
		c.NeedsBreak = c.StressLevel >= 8 || c.EnergyLevel <= 3
	})
	return err
}
