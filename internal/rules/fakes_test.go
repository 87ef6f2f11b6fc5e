package rules

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pilarhub/eventcore/internal/database"
)

type fakeRuleStore struct {
	mu        sync.Mutex
	rules     map[string]*database.Rule
	order     []string
	listCalls int
	listErr   error
}

func newFakeRuleStore(rules ...*database.Rule) *fakeRuleStore {
	s := &fakeRuleStore{rules: make(map[string]*database.Rule)}
	for _, r := range rules {
		s.rules[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *fakeRuleStore) ListEnabledRules(_ context.Context, userID string) ([]*database.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*database.Rule
	for _, id := range s.order {
		r := s.rules[id]
		if r.UserID == userID && r.Enabled {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeRuleStore) GetRule(_ context.Context, id string) (*database.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRuleStore) RecordRuleTriggered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return database.ErrNotFound
	}
	r.TimesTriggered++
	r.LastTriggeredAt = &at
	return nil
}

func (s *fakeRuleStore) timesTriggered(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules[id].TimesTriggered
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	rows    map[string]*database.Notification
	saved   []string
	saveErr error
}

func newFakeNotificationStore(rows ...*database.Notification) *fakeNotificationStore {
	s := &fakeNotificationStore{rows: make(map[string]*database.Notification)}
	for _, n := range rows {
		s.rows[n.ID] = n
	}
	return s
}

func (s *fakeNotificationStore) GetNotification(_ context.Context, id string) (*database.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNotificationStore) SaveClassification(_ context.Context, n *database.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *n
	s.rows[n.ID] = &cp
	s.saved = append(s.saved, n.ID)
	return nil
}

func (s *fakeNotificationStore) ListUnprocessedNotificationIDs(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, n := range s.rows {
		if n.RulesProcessed {
			continue
		}
		if userID != "" && n.UserID != userID {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (s *fakeNotificationStore) get(id string) *database.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

// fakeRedis is an in-memory stand-in for the cache's Redis calls.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failAll bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (r *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if r.failAll {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	v, ok := r.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (r *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if r.failAll {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		r.data[key] = string(v)
	case string:
		r.data[key] = v
	}
	r.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (r *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "del")
	if r.failAll {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := r.data[k]; ok {
			delete(r.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func strPtr(s string) *string { return &s }
