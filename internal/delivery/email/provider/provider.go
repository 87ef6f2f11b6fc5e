// Package provider holds the email backends (SES, Resend) and the registry
// that picks between them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoProvider is returned when no registered provider is configured.
var ErrNoProvider = errors.New("no configured email provider available")

// EmailRequest is an email to send.
type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Provider is an email backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, req *EmailRequest) error
	IsConfigured() bool
}

// Registry sends through an ordered list of providers: the first configured
// one is tried, then the rest on failure.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register appends a provider. Registration order is the fallback order
// unless SetOrder overrides it.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// SetOrder sets the provider order, primary first.
func (r *Registry) SetOrder(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
	}
	r.order = append([]string(nil), names...)
	return nil
}

// Available lists configured providers in send order.
func (r *Registry) Available() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, name := range r.order {
		if p := r.providers[name]; p != nil && p.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// Send tries each configured provider in order and returns the first
// provider's error if all of them fail.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	providers := r.Available()
	if len(providers) == 0 {
		return ErrNoProvider
	}

	var firstErr error
	for i, p := range providers {
		err := p.Send(ctx, req)
		if err == nil {
			if i > 0 {
				slog.Warn("Email sent via fallback provider", "provider", p.Name())
			}
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
		slog.Warn("Email provider failed", "provider", p.Name(), "error", err)
	}
	return firstErr
}
