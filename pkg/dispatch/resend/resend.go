// Package resend delivers dispatch emails through the Resend API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
)

// ErrMissingAPIKey indicates an empty API key.
var ErrMissingAPIKey = errors.New("resend: api key is required")

// Config holds Resend provider settings.
type Config struct {
	APIKey      string `mapstructure:"api_key"`
	SenderEmail string `mapstructure:"sender_email"`
	SenderName  string `mapstructure:"sender_name"`
}

// EmailsAPI is the part of the Resend client used by Sender.
type EmailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Sender implements dispatch.Sender.
type Sender struct {
	emails EmailsAPI
	from   string
}

// New creates a Sender from cfg.
func New(cfg Config) (*Sender, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	return NewWithAPI(resend.NewClient(cfg.APIKey).Emails, cfg), nil
}

// NewWithAPI creates a Sender over an existing emails API.
func NewWithAPI(api EmailsAPI, cfg Config) *Sender {
	return &Sender{
		emails: api,
		from:   dispatch.Address(cfg.SenderName, cfg.SenderEmail),
	}
}

// Send implements dispatch.Sender.
func (s *Sender) Send(ctx context.Context, email *dispatch.Email) error {
	from := email.From
	if from == "" {
		from = s.from
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Headers: email.Headers,
	}
	if len(email.Tags) > 0 {
		req.Tags = make([]resend.Tag, 0, len(email.Tags))
		for name, v := range email.Tags {
			req.Tags = append(req.Tags, resend.Tag{Name: name, Value: tagValue(v)})
		}
	}

	if _, err := s.emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// tagValue renders a tag value. Presence-only tags become "true".
func tagValue(v any) string {
	switch val := v.(type) {
	case nil, struct{}:
		return "true"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprint(val)
	}
}
