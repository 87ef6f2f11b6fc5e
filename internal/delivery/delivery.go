// Package delivery pushes notifications to users outside the app. Each channel
// is a Sender strategy registered by name; a Pool runs sends on background
// workers with retry.
package delivery

import (
	"context"
	"sort"
	"sync"

	"github.com/pilarhub/eventcore/internal/database"
)

// Channel names a delivery channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Request is one notification to deliver on one channel.
type Request struct {
	Channel      Channel
	UserID       string
	Address      string // recipient address for channels that need one
	Notification *database.Notification
}

// Sender delivers requests for a single channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, req *Request) error
}

// Registry maps channels to senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[Channel]Sender
}

// NewRegistry creates a registry holding senders.
func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[Channel]Sender)}
	for _, s := range senders {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the sender for its channel.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Channel()] = s
}

// Get returns the sender for a channel.
func (r *Registry) Get(ch Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[ch]
	return s, ok
}

// Channels lists the registered channels in sorted order.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
