// Package email delivers notifications by email through the provider registry.
package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/pilarhub/eventcore/internal/database"
	"github.com/pilarhub/eventcore/internal/delivery"
	"github.com/pilarhub/eventcore/internal/delivery/email/provider"
	"github.com/pilarhub/eventcore/internal/delivery/retry"
)

// mailer is satisfied by *provider.Registry.
type mailer interface {
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// Sender renders notifications as email.
type Sender struct {
	from   string
	mailer mailer
}

// NewSender creates an email sender sending as from.
func NewSender(from string, mailer mailer) *Sender {
	return &Sender{from: from, mailer: mailer}
}

// Channel returns delivery.ChannelEmail.
func (s *Sender) Channel() delivery.Channel {
	return delivery.ChannelEmail
}

// Send emails the notification to req.Address.
func (s *Sender) Send(ctx context.Context, req *delivery.Request) error {
	recipients := ParseRecipients(req.Address)
	if len(recipients) == 0 {
		return retry.Permanent(fmt.Errorf("email recipient is required"))
	}
	for _, r := range recipients {
		if !strings.Contains(r, "@") {
			return retry.Permanent(fmt.Errorf("invalid email address format: %q", r))
		}
	}
	if req.Notification == nil {
		return retry.Permanent(fmt.Errorf("email notification is required"))
	}

	msg := Build(s.from, recipients, req.Notification)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Build renders the email for a notification.
func Build(from string, to []string, n *database.Notification) *provider.EmailRequest {
	subject := n.Title
	if subject == "" {
		subject = n.Type
	}

	var text strings.Builder
	text.WriteString(n.Message)
	if n.Priority != nil {
		fmt.Fprintf(&text, "\n\nPriority: %s", *n.Priority)
	}

	return &provider.EmailRequest{
		From:    from,
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML: fmt.Sprintf("<h2>%s</h2><p>%s</p>",
			html.EscapeString(subject), html.EscapeString(n.Message)),
	}
}

// ParseRecipients splits a comma-separated address list.
func ParseRecipients(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
