package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pilarhub/eventcore/internal/database"
)

// DefaultReprocessLimit caps one ReprocessPending pass.
const DefaultReprocessLimit = 500

// RuleStore is the rule repository the engine reads from.
type RuleStore interface {
	ListEnabledRules(ctx context.Context, userID string) ([]*database.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*database.Rule, error)
	RecordRuleTriggered(ctx context.Context, ruleID string, at time.Time) error
}

// NotificationStore loads notifications and commits classification results.
type NotificationStore interface {
	GetNotification(ctx context.Context, id string) (*database.Notification, error)
	SaveClassification(ctx context.Context, n *database.Notification) error
	ListUnprocessedNotificationIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

// TestResult is the outcome of a dry run.
type TestResult struct {
	Matches                 bool             `json:"matches"`
	ActionsThatWouldExecute []ExecutedAction `json:"actions_that_would_execute"`
}

// ItemResult is the per-notification outcome of a batch.
type ItemResult struct {
	NotificationID string           `json:"notification_id"`
	Actions        []ExecutedAction `json:"actions,omitempty"`
	Err            error            `json:"-"`
}

// ItemError describes one failed batch item.
type ItemError struct {
	NotificationID string `json:"notification_id"`
	Error          string `json:"error"`
}

// BatchResult summarizes ProcessBatch. Failures never abort the batch.
type BatchResult struct {
	Processed       int          `json:"processed"`
	ActionsExecuted int          `json:"actions_executed"`
	Errors          []ItemError  `json:"errors"`
	Items           []ItemResult `json:"items"`
}

// compiledRule is a rule with its JSON columns parsed.
type compiledRule struct {
	rule       *database.Rule
	conditions Condition
	actions    []Action
}

// Engine evaluates rules against notifications.
type Engine struct {
	rules         RuleStore
	notifications NotificationStore
	now           func() time.Time
}

// NewEngine creates a rule engine. now defaults to time.Now.
func NewEngine(rules RuleStore, notifications NotificationStore, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		rules:         rules,
		notifications: notifications,
		now:           now,
	}
}

func compile(r *database.Rule) (*compiledRule, error) {
	c := &compiledRule{rule: r}
	if err := json.Unmarshal(r.Conditions, &c.conditions); err != nil {
		return nil, fmt.Errorf("failed to parse conditions of rule %s: %w", r.ID, err)
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &c.actions); err != nil {
			return nil, fmt.Errorf("failed to parse actions of rule %s: %w", r.ID, err)
		}
	}
	return c, nil
}

// orderedRules compiles rules and sorts them by priority, highest first. Ties
// keep the store's order. Rules that fail to parse are dropped with a warning.
func orderedRules(rules []*database.Rule) []*compiledRule {
	out := make([]*compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		c, err := compile(r)
		if err != nil {
			slog.Warn("Skipping malformed rule", "rule_id", r.ID, "error", err)
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].rule.Priority > out[j].rule.Priority
	})
	return out
}

// Classification is the outcome of running the rules over one notification.
type Classification struct {
	Actions []ExecutedAction
	// RuleIDs lists the rules that matched, in firing order.
	RuleIDs []string
}

// EvaluateNotification runs every enabled rule of the notification's owner,
// highest priority first, applies the actions of each matching rule in order
// and records the trigger of each matching rule. n is mutated in place;
// persisting it is the caller's job. Returns the actions that ran, in
// execution order.
func (e *Engine) EvaluateNotification(ctx context.Context, n *database.Notification) ([]ExecutedAction, error) {
	c, err := e.Classify(ctx, n)
	if err != nil {
		return nil, err
	}
	e.RecordTriggered(ctx, c)
	return c.Actions, nil
}

// Classify is EvaluateNotification without the rule statistics. Callers that
// persist n call RecordTriggered once the write has committed, so a failed
// write never counts a trigger.
func (e *Engine) Classify(ctx context.Context, n *database.Notification) (*Classification, error) {
	if n == nil {
		return nil, fmt.Errorf("notification cannot be nil")
	}
	rules, err := e.rules.ListEnabledRules(ctx, n.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	c := &Classification{}
	for _, rule := range orderedRules(rules) {
		if !rule.conditions.Matches(n) {
			continue
		}

		slog.Debug("Rule matched",
			"rule_id", rule.rule.ID,
			"notification_id", n.ID,
			"priority", rule.rule.Priority,
		)

		for _, action := range rule.actions {
			actionType, value, err := action.apply(n)
			if err != nil {
				slog.Warn("Skipping rule action",
					"rule_id", rule.rule.ID,
					"action", action.Type,
					"error", err,
				)
				continue
			}
			c.Actions = append(c.Actions, ExecutedAction{
				RuleID:   rule.rule.ID,
				RuleName: rule.rule.Name,
				Type:     actionType,
				Value:    value,
			})
		}
		c.RuleIDs = append(c.RuleIDs, rule.rule.ID)
	}
	return c, nil
}

// RecordTriggered bumps the statistics of every rule in c. Failures are logged.
func (e *Engine) RecordTriggered(ctx context.Context, c *Classification) {
	if c == nil {
		return
	}
	at := e.now()
	for _, id := range c.RuleIDs {
		if err := e.rules.RecordRuleTriggered(ctx, id, at); err != nil {
			slog.Error("Failed to record rule trigger",
				"rule_id", id,
				"error", err,
			)
		}
	}
}

// TestRule reports whether a rule matches a notification and which actions
// would run. Nothing is written and the notification is not mutated.
func (e *Engine) TestRule(ctx context.Context, ruleID, notificationID string) (*TestResult, error) {
	rule, err := e.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	n, err := e.notifications.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}

	result := &TestResult{ActionsThatWouldExecute: []ExecutedAction{}}
	compiled, err := compile(rule)
	if err != nil {
		slog.Warn("Malformed rule in dry run", "rule_id", rule.ID, "error", err)
		return result, nil
	}
	if !compiled.conditions.Matches(n) {
		return result, nil
	}

	result.Matches = true
	for _, action := range compiled.actions {
		actionType, value, err := action.resolve()
		if err != nil {
			continue
		}
		result.ActionsThatWouldExecute = append(result.ActionsThatWouldExecute, ExecutedAction{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Type:     actionType,
			Value:    value,
		})
	}
	return result, nil
}

// ProcessBatch evaluates and saves each notification. A failing item is
// recorded in the result and the batch continues.
func (e *Engine) ProcessBatch(ctx context.Context, notificationIDs []string) BatchResult {
	result := BatchResult{
		Errors: []ItemError{},
		Items:  make([]ItemResult, 0, len(notificationIDs)),
	}

	for _, id := range notificationIDs {
		item := e.processOne(ctx, id)
		result.Items = append(result.Items, item)
		if item.Err != nil {
			result.Errors = append(result.Errors, ItemError{NotificationID: id, Error: item.Err.Error()})
			continue
		}
		result.Processed++
		result.ActionsExecuted += len(item.Actions)
	}

	slog.Info("Processed notification batch",
		"requested", len(notificationIDs),
		"processed", result.Processed,
		"actions_executed", result.ActionsExecuted,
		"errors", len(result.Errors),
	)
	return result
}

func (e *Engine) processOne(ctx context.Context, id string) ItemResult {
	item := ItemResult{NotificationID: id}

	n, err := e.notifications.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			item.Err = fmt.Errorf("notification %s not found", id)
		} else {
			item.Err = fmt.Errorf("failed to load notification: %w", err)
		}
		return item
	}

	c, err := e.Classify(ctx, n)
	if err != nil {
		item.Err = err
		return item
	}
	n.RulesProcessed = true
	if err := e.notifications.SaveClassification(ctx, n); err != nil {
		item.Err = fmt.Errorf("failed to save notification: %w", err)
		return item
	}
	e.RecordTriggered(ctx, c)
	item.Actions = c.Actions
	return item
}

// ReprocessPending runs ProcessBatch over notifications that have not been
// through the rules yet. An empty userID covers every user.
func (e *Engine) ReprocessPending(ctx context.Context, userID string, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = DefaultReprocessLimit
	}
	ids, err := e.notifications.ListUnprocessedNotificationIDs(ctx, userID, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list unprocessed notifications: %w", err)
	}
	return e.ProcessBatch(ctx, ids), nil
}
