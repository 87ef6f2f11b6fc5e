package contextmgr

import (
	"context"
	"errors"
	"sync"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/events"
)

type fakeContextStore struct {
	mu        sync.Mutex
	rows      map[string]database.UserContext
	modifyErr error
	creates   int
}

func newFakeContextStore() *fakeContextStore {
	return &fakeContextStore{rows: make(map[string]database.UserContext)}
}

func (s *fakeContextStore) GetOrCreateContext(_ context.Context, seed *database.UserContext) (*database.UserContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[seed.UserID]
	if !ok {
		row = *seed
		s.rows[seed.UserID] = row
		s.creates++
	}
	return &row, nil
}

func (s *fakeContextStore) ModifyContext(_ context.Context, seed *database.UserContext, fn func(*database.UserContext) error) (*database.UserContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modifyErr != nil {
		return nil, s.modifyErr
	}
	row, ok := s.rows[seed.UserID]
	if !ok {
		row = *seed
		s.creates++
	}
	if err := fn(&row); err != nil {
		return nil, err
	}
	s.rows[seed.UserID] = row
	return &row, nil
}

func (s *fakeContextStore) get(userID string) (database.UserContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	return row, ok
}

func (s *fakeContextStore) put(c database.UserContext) {
	s.mu.Lock()
	s.rows[c.UserID] = c
	s.mu.Unlock()
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*events.Event
}

func (p *fakePublisher) PublishDetached(_ context.Context, e *events.Event) {
	p.mu.Lock()
	p.published = append(p.published, e)
	p.mu.Unlock()
}

func (p *fakePublisher) all() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Event(nil), p.published...)
}

// memoryEventLog is an in-memory event log for wiring a real bus in tests.
type memoryEventLog struct {
	mu   sync.Mutex
	rows map[string]*events.Event
}

func newMemoryEventLog() *memoryEventLog {
	return &memoryEventLog{rows: make(map[string]*events.Event)}
}

func (l *memoryEventLog) InsertEvent(_ context.Context, e *events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *e
	l.rows[e.ID] = &cp
	return nil
}

func (l *memoryEventLog) MarkEventProcessed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[id]
	if !ok {
		return errors.New("not found")
	}
	row.Processed = true
	return nil
}

func (l *memoryEventLog) GetRecentEvents(_ context.Context, eventType events.Type, _ int) ([]*events.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*events.Event
	for _, row := range l.rows {
		if eventType == "" || row.Type == eventType {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *memoryEventLog) GetPendingEvents(context.Context, int) ([]*events.Event, error) {
	return nil, nil
}

func (l *memoryEventLog) GetEventStats(_ context.Context, windowHours int) (*events.Stats, error) {
	return &events.Stats{WindowHours: windowHours}, nil
}
