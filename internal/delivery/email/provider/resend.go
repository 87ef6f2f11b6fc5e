package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// resendAPI is the part of resend's email service the provider calls.
type resendAPI interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend sends email through the Resend API.
type Resend struct {
	emails resendAPI
}

// NewResend creates a Resend provider. An empty apiKey leaves it unconfigured.
func NewResend(apiKey string) *Resend {
	if apiKey == "" {
		slog.Warn("Resend API key not set, Resend provider will be unavailable")
		return &Resend{}
	}
	client := resend.NewClient(apiKey)
	slog.Info("Resend email provider initialized")
	return &Resend{emails: client.Emails}
}

// Name returns "resend".
func (p *Resend) Name() string { return "resend" }

// IsConfigured reports whether an API key was supplied.
func (p *Resend) IsConfigured() bool { return p.emails != nil }

// Send sends req via Resend. HTML wins over plain text when both are set.
func (p *Resend) Send(ctx context.Context, req *EmailRequest) error {
	if p.emails == nil {
		return fmt.Errorf("Resend client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
	}
	if req.HTML != "" {
		params.Html = req.HTML
	} else {
		params.Text = req.Text
	}

	resp, err := p.emails.Send(params)
	if err != nil {
		return fmt.Errorf("Resend send failed: %w", err)
	}
	slog.Info("Email sent via Resend", "email_id", resp.Id, "to", req.To)
	return nil
}
