package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/delivery"
	"github.com/pilarhub/eventcore/internal/eventbus"
	"github.com/pilarhub/eventcore/internal/events"
	"github.com/pilarhub/eventcore/internal/rules"
)

type fakePreferences struct {
	prefs map[string]*database.Preference
	err   error
}

func (f *fakePreferences) GetPreference(_ context.Context, userID, notificationType string) (*database.Preference, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.prefs[userID+"/"+notificationType]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	created []*database.Notification
	err     error
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *database.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.ID = fmt.Sprintf("n-%d", len(f.created)+1)
	n.CreatedAt = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	cp := *n
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeNotifications) all() []*database.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*database.Notification(nil), f.created...)
}

type fakeDeliverer struct {
	mu       sync.Mutex
	requests []*delivery.Request
}

func (f *fakeDeliverer) Submit(req *delivery.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return true
}

func (f *fakeDeliverer) channels() []delivery.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delivery.Channel
	for _, r := range f.requests {
		out = append(out, r.Channel)
	}
	return out
}

type fakeClassifier struct {
	err      error
	calls    int
	recorded int
}

func (f *fakeClassifier) Classify(_ context.Context, n *database.Notification) (*rules.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rules.Classification{RuleIDs: []string{"rule-1"}}, nil
}

func (f *fakeClassifier) RecordTriggered(context.Context, *rules.Classification) {
	f.recorded++
}

// ruleList serves a fixed rule set to a real rules.Engine.
type ruleList struct {
	rules []*database.Rule
}

func (r *ruleList) ListEnabledRules(_ context.Context, userID string) ([]*database.Rule, error) {
	var out []*database.Rule
	for _, rule := range r.rules {
		if rule.UserID == userID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *ruleList) GetRule(context.Context, string) (*database.Rule, error) {
	return nil, database.ErrNotFound
}

func (r *ruleList) RecordRuleTriggered(context.Context, string, time.Time) error { return nil }

type subscription struct {
	eventType events.Type
	name      string
}

type fakeBus struct {
	subs []subscription
	err  error
}

func (b *fakeBus) Subscribe(eventType events.Type, name string, _ eventbus.HandlerFunc) error {
	if b.err != nil {
		return b.err
	}
	b.subs = append(b.subs, subscription{eventType, name})
	return nil
}

var errDatabaseDown = errors.New("database is down")
