// Package dispatch turns selected bus events into user notifications. It
// honors per-type preferences, runs the rule engine on each new notification
// and hands push and email delivery to the delivery pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/delivery"
	"github.com/pilarhub/eventcore/internal/eventbus"
	"github.com/pilarhub/eventcore/internal/events"
	"github.com/pilarhub/eventcore/internal/rules"
)

const handlerName = "notification-dispatch"

// PreferenceStore looks up delivery preferences.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID, notificationType string) (*database.Preference, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *database.Notification) error
}

// Classifier applies user rules to a notification before it is stored.
type Classifier interface {
	Classify(ctx context.Context, n *database.Notification) (*rules.Classification, error)
	RecordTriggered(ctx context.Context, c *rules.Classification)
}

// Deliverer queues out-of-app delivery. *delivery.Pool satisfies it.
type Deliverer interface {
	Submit(req *delivery.Request) bool
}

// Subscriber is the part of the bus the consumer registers with.
type Subscriber interface {
	Subscribe(eventType events.Type, name string, fn eventbus.HandlerFunc) error
}

// Options holds the optional collaborators.
type Options struct {
	Classifier Classifier
	Delivery   Deliverer
}

// Consumer creates notifications from bus events.
type Consumer struct {
	prefs         PreferenceStore
	notifications NotificationStore
	classifier    Classifier
	delivery      Deliverer
}

// NewConsumer creates a dispatch consumer.
func NewConsumer(prefs PreferenceStore, notifications NotificationStore, opts Options) *Consumer {
	return &Consumer{
		prefs:         prefs,
		notifications: notifications,
		classifier:    opts.Classifier,
		delivery:      opts.Delivery,
	}
}

// Types returns the event types that produce notifications.
func (c *Consumer) Types() []events.Type {
	return []events.Type{
		events.TaskDeadlineApproaching,
		events.TaskOverdue,
		events.CapacityCritical,
		events.CyclePhaseChanged,
	}
}

// Register subscribes Handle for every type in Types.
func (c *Consumer) Register(bus Subscriber) error {
	for _, t := range c.Types() {
		if err := bus.Subscribe(t, handlerName, c.Handle); err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", t, err)
		}
	}
	return nil
}

// DefaultPreference is used when a user has no stored preference for a type:
// enabled, in-app and push on, email off.
func DefaultPreference(userID, notificationType string) *database.Preference {
	return &database.Preference{
		UserID:           userID,
		NotificationType: notificationType,
		Enabled:          true,
		InApp:            true,
		Push:             true,
	}
}

// Handle creates and delivers the notification for e. A type the user turned
// off, or in-app delivery turned off, drops the event without error.
func (c *Consumer) Handle(ctx context.Context, e *events.Event) error {
	userID := e.ResolveUserID()
	if userID == "" {
		return fmt.Errorf("event %s has no user id", e.ID)
	}

	pref, err := c.preference(ctx, userID, string(e.Type))
	if err != nil {
		return err
	}
	if !pref.Enabled || !pref.InApp {
		slog.Info("Notification dropped by user preference",
			"event_id", e.ID,
			"user_id", userID,
			"type", e.Type,
			"enabled", pref.Enabled,
			"in_app", pref.InApp,
		)
		return nil
	}

	n, err := Build(e)
	if err != nil {
		return fmt.Errorf("failed to build notification: %w", err)
	}
	n.UserID = userID

	classification := c.classify(ctx, n)

	if err := c.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	if classification != nil {
		c.classifier.RecordTriggered(ctx, classification)
	}

	slog.Info("Created notification",
		"notification_id", n.ID,
		"event_id", e.ID,
		"user_id", userID,
		"type", n.Type,
	)

	c.deliver(n, pref)
	return nil
}

func (c *Consumer) preference(ctx context.Context, userID, notificationType string) (*database.Preference, error) {
	pref, err := c.prefs.GetPreference(ctx, userID, notificationType)
	if errors.Is(err, database.ErrNotFound) {
		return DefaultPreference(userID, notificationType), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}
	return pref, nil
}

// classify runs the rules before the first write so the stored row already
// carries their effect. A classifier failure leaves the notification for a
// later reprocessing pass.
func (c *Consumer) classify(ctx context.Context, n *database.Notification) *rules.Classification {
	if c.classifier == nil {
		return nil
	}
	classification, err := c.classifier.Classify(ctx, n)
	if err != nil {
		slog.Warn("Rule evaluation failed, notification left for reprocessing",
			"user_id", n.UserID,
			"type", n.Type,
			"error", err,
		)
		return nil
	}
	n.RulesProcessed = true
	if len(classification.Actions) > 0 {
		slog.Debug("Rules applied to new notification",
			"user_id", n.UserID,
			"actions", len(classification.Actions),
		)
	}
	return classification
}

// deliver queues push and email. Archived notifications stay in-app only.
func (c *Consumer) deliver(n *database.Notification, pref *database.Preference) {
	if c.delivery == nil {
		return
	}
	if n.Archived {
		slog.Debug("Notification archived by rules, skipping delivery", "notification_id", n.ID)
		return
	}
	if pref.Push {
		c.delivery.Submit(&delivery.Request{
			Channel:      delivery.ChannelPush,
			UserID:       n.UserID,
			Notification: n,
		})
	}
	if pref.Email {
		if pref.EmailAddress == "" {
			slog.Warn("Email delivery enabled without an address", "user_id", n.UserID, "type", n.Type)
			return
		}
		c.delivery.Submit(&delivery.Request{
			Channel:      delivery.ChannelEmail,
			UserID:       n.UserID,
			Address:      pref.EmailAddress,
			Notification: n,
		})
	}
}
