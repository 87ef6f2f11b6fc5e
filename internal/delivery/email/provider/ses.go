package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the part of *sesv2.Client the provider calls.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends email through AWS SES v2.
type SES struct {
	client sesAPI
	region string
}

// NewSES loads the default AWS config for region. A config failure leaves the
// provider unconfigured so the registry falls back.
func NewSES(ctx context.Context, region string) *SES {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider will be unavailable", "error", err)
		return &SES{region: region}
	}
	slog.Info("SES email provider initialized", "region", region)
	return &SES{client: sesv2.NewFromConfig(cfg), region: region}
}

// Name returns "ses".
func (p *SES) Name() string { return "ses" }

// IsConfigured reports whether an SES client exists.
func (p *SES) IsConfigured() bool { return p.client != nil }

// Send sends req via SES.
func (p *SES) Send(ctx context.Context, req *EmailRequest) error {
	if p.client == nil {
		return fmt.Errorf("SES client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	var body types.Body
	if req.HTML != "" {
		body.Html = &types.Content{Data: &req.HTML}
	}
	if req.Text != "" {
		body.Text = &types.Content{Data: &req.Text}
	}

	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &req.From,
		Destination:      &types.Destination{ToAddresses: req.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &req.Subject},
				Body:    &body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES send failed: %w", err)
	}

	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	slog.Info("Email sent via SES", "message_id", messageID, "to", req.To)
	return nil
}
