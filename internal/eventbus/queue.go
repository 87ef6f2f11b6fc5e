package eventbus

import (
	"sync"

	"github.com/pilarhub/eventcore/internal/events"
)

// queue is an unbounded FIFO with a single blocking consumer.
type queue struct {
	mu     sync.Mutex
	items  []*events.Event
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(e *events.Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) tryPop() (*events.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return e, true
}

// pop blocks until an item is available or stop is closed.
func (q *queue) pop(stop <-chan struct{}) (*events.Event, bool) {
	for {
		if e, ok := q.tryPop(); ok {
			return e, true
		}
		select {
		case <-q.notify:
		case <-stop:
			return nil, false
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
