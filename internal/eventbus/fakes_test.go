package eventbus

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pilarhub/eventcore/internal/events"
)

type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]*events.Event
	order     []string
	insertErr error
	markErr   error
	pending   []*events.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*events.Event)}
}

func (s *fakeStore) InsertEvent(_ context.Context, e *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.rows[e.ID]; ok {
		return errors.New("duplicate")
	}
	cp := *e
	s.rows[e.ID] = &cp
	s.order = append(s.order, e.ID)
	return nil
}

func (s *fakeStore) MarkEventProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	row, ok := s.rows[id]
	if !ok {
		return errors.New("not found")
	}
	now := time.Now()
	row.Processed = true
	row.ProcessedAt = &now
	return nil
}

func (s *fakeStore) GetRecentEvents(_ context.Context, eventType events.Type, limit int) ([]*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*events.Event
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		row := s.rows[s.order[i]]
		if eventType != "" && row.Type != eventType {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) GetEventStats(_ context.Context, windowHours int) (*events.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &events.Stats{WindowHours: windowHours, ByType: map[string]int64{}, ByModule: map[string]int64{}}
	for _, row := range s.rows {
		stats.Total++
		if row.Processed {
			stats.Processed++
		} else {
			stats.Pending++
		}
		stats.ByType[string(row.Type)]++
		stats.ByModule[string(row.OriginModule)]++
	}
	return stats, nil
}

func (s *fakeStore) processedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, row := range s.rows {
		if row.Processed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, e *events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, e.ID)
	return f.err
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	published       atomic.Int64
	dispatched      atomic.Int64
	handlerFailures atomic.Int64
	errors          atomic.Int64
}

func (r *fakeRecorder) RecordPublished()               { r.published.Add(1) }
func (r *fakeRecorder) RecordDispatched(time.Duration) { r.dispatched.Add(1) }
func (r *fakeRecorder) RecordHandlerFailure()          { r.handlerFailures.Add(1) }
func (r *fakeRecorder) RecordError()                   { r.errors.Add(1) }

// callLog records handler invocations in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}
