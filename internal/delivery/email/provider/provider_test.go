package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/resend/resend-go/v2"
)

type fakeProvider struct {
	name       string
	configured bool
	err        error
	sent       int
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) IsConfigured() bool { return p.configured }
func (p *fakeProvider) Send(context.Context, *EmailRequest) error {
	p.sent++
	return p.err
}

func testEmail() *EmailRequest {
	return &EmailRequest{
		From:    "noreply@pilarhub.app",
		To:      []string{"ana@example.org"},
		Subject: "Task overdue",
		Text:    "Write report is overdue",
	}
}

func TestRegistry_Send(t *testing.T) {
	tests := []struct {
		name      string
		primary   *fakeProvider
		fallback  *fakeProvider
		wantErr   bool
		wantSends [2]int
	}{
		{
			name:      "primary succeeds",
			primary:   &fakeProvider{name: "ses", configured: true},
			fallback:  &fakeProvider{name: "resend", configured: true},
			wantSends: [2]int{1, 0},
		},
		{
			name:      "falls back on failure",
			primary:   &fakeProvider{name: "ses", configured: true, err: errors.New("throttled")},
			fallback:  &fakeProvider{name: "resend", configured: true},
			wantSends: [2]int{1, 1},
		},
		{
			name:      "skips unconfigured primary",
			primary:   &fakeProvider{name: "ses"},
			fallback:  &fakeProvider{name: "resend", configured: true},
			wantSends: [2]int{0, 1},
		},
		{
			name:      "all fail",
			primary:   &fakeProvider{name: "ses", configured: true, err: errors.New("a")},
			fallback:  &fakeProvider{name: "resend", configured: true, err: errors.New("b")},
			wantErr:   true,
			wantSends: [2]int{1, 1},
		},
		{
			name:     "none configured",
			primary:  &fakeProvider{name: "ses"},
			fallback: &fakeProvider{name: "resend"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(tt.fallback)
			r.Register(tt.primary)
			if err := r.SetOrder("ses", "resend"); err != nil {
				t.Fatalf("SetOrder() error = %v", err)
			}

			err := r.Send(context.Background(), testEmail())
			if (err != nil) != tt.wantErr {
				t.Errorf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := [2]int{tt.primary.sent, tt.fallback.sent}; got != tt.wantSends {
				t.Errorf("sends = %v, want %v", got, tt.wantSends)
			}
		})
	}
}

func TestRegistry_SetOrderUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.SetOrder("smtp"); err == nil {
		t.Error("SetOrder() with unknown provider should fail")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	id := "msg-1"
	return &sesv2.SendEmailOutput{MessageId: &id}, nil
}

func TestSES_Send(t *testing.T) {
	api := &fakeSES{}
	p := &SES{client: api, region: "us-east-1"}

	if err := p.Send(context.Background(), testEmail()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if *api.input.FromEmailAddress != "noreply@pilarhub.app" || api.input.Destination.ToAddresses[0] != "ana@example.org" {
		t.Errorf("input = %+v", api.input)
	}
	if body := api.input.Content.Simple.Body; body.Text == nil || body.Html != nil {
		t.Errorf("body = %+v, want text only", body)
	}

	api.err = errors.New("MessageRejected")
	if err := p.Send(context.Background(), testEmail()); err == nil {
		t.Error("Send() should surface SES errors")
	}

	if (&SES{}).IsConfigured() {
		t.Error("SES without client should be unconfigured")
	}
	if err := p.Send(context.Background(), &EmailRequest{}); err == nil {
		t.Error("Send() without recipients should fail")
	}
}

type fakeResend struct {
	params *resend.SendEmailRequest
}

func (f *fakeResend) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.params = params
	return &resend.SendEmailResponse{Id: "re-1"}, nil
}

func TestResend_Send(t *testing.T) {
	api := &fakeResend{}
	p := &Resend{emails: api}

	req := testEmail()
	req.HTML = "<p>Write report is overdue</p>"
	if err := p.Send(context.Background(), req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if api.params.Html == "" || api.params.Text != "" {
		t.Errorf("params = %+v, want HTML only", api.params)
	}

	if NewResend("").IsConfigured() {
		t.Error("NewResend(\"\") should be unconfigured")
	}
}
