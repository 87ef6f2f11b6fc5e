// Package push delivers notifications to the push gateway over HTTP.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/delivery"
	"github.com/pilarhub/eventcore/internal/delivery/retry"
)

// DefaultTimeout bounds one gateway call.
const DefaultTimeout = 10 * time.Second

// Body is what the gateway receives.
type Body struct {
	UserID  string  `json:"user_id"`
	Payload Payload `json:"payload"`
}

// Payload is the notification as shown on the device.
type Payload struct {
	NotificationID string         `json:"notification_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Category       string         `json:"category,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// Sender posts notifications to a push gateway.
type Sender struct {
	gatewayURL string
	httpClient *http.Client
}

// IsValidURL reports whether s is an absolute http(s) URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NewSender creates a push sender. client may be nil.
func NewSender(gatewayURL string, client *http.Client) (*Sender, error) {
	if !IsValidURL(gatewayURL) {
		return nil, fmt.Errorf("invalid push gateway URL: %q (must be a valid HTTP/HTTPS URL)", gatewayURL)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Sender{
		gatewayURL: gatewayURL,
		httpClient: client,
	}, nil
}

// Channel returns delivery.ChannelPush.
func (s *Sender) Channel() delivery.Channel {
	return delivery.ChannelPush
}

// BuildPayload converts a notification into its device payload.
func BuildPayload(n *database.Notification) Payload {
	p := Payload{
		NotificationID: n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		Data:           n.ExtraData,
	}
	if n.Category != nil {
		p.Category = *n.Category
	}
	if n.Priority != nil {
		p.Priority = *n.Priority
	}
	return p
}

// Send posts {"user_id", "payload"} to the gateway. Client errors other than
// 429 are permanent; server errors are retried by the pool.
func (s *Sender) Send(ctx context.Context, req *delivery.Request) error {
	if req.UserID == "" {
		return retry.Permanent(fmt.Errorf("push recipient is required"))
	}
	if req.Notification == nil {
		return retry.Permanent(fmt.Errorf("push notification is required"))
	}

	data, err := json.Marshal(Body{UserID: req.UserID, Payload: BuildPayload(req.Notification)})
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal push payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach push gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("push gateway returned status %d", resp.StatusCode))
	}

	slog.Info("Sent push notification",
		"user_id", req.UserID,
		"notification_id", req.Notification.ID,
	)
	return nil
}
