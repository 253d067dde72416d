// Package ses delivers dispatch emails through Amazon SES (API v2).
package ses

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
)

const (
	defaultRegion = "us-east-1"
	charset       = "UTF-8"
)

var (
	// ErrMissingSender indicates no default from address was configured.
	ErrMissingSender = errors.New("ses: sender email is required")

	// ErrThrottled indicates SES rejected the call due to rate or quota limits.
	ErrThrottled = errors.New("ses: throttled")

	// ErrRejected indicates SES refused the message itself.
	ErrRejected = errors.New("ses: message rejected")
)

// Config holds SES provider settings. Empty keys fall back to the default
// AWS credential chain.
type Config struct {
	Region           string `mapstructure:"region"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	SenderEmail      string `mapstructure:"sender_email"`
	SenderName       string `mapstructure:"sender_name"`
	ConfigurationSet string `mapstructure:"configuration_set"`
}

// API is the subset of *sesv2.Client used by Sender.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// Sender implements dispatch.Sender.
type Sender struct {
	api    API
	from   string
	cfgSet string
}

// New loads AWS configuration and creates a Sender.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return NewWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewWithAPI creates a Sender over an existing SES client.
func NewWithAPI(api API, cfg Config) (*Sender, error) {
	if cfg.SenderEmail == "" {
		return nil, ErrMissingSender
	}
	return &Sender{
		api:    api,
		from:   dispatch.Address(cfg.SenderName, cfg.SenderEmail),
		cfgSet: cfg.ConfigurationSet,
	}, nil
}

// Send implements dispatch.Sender.
func (s *Sender) Send(ctx context.Context, email *dispatch.Email) error {
	from := email.From
	if from == "" {
		from = s.from
	}

	body := &types.Body{}
	if email.Text != "" {
		body.Text = &types.Content{Data: aws.String(email.Text), Charset: aws.String(charset)}
	}
	if email.HTML != "" {
		body.Html = &types.Content{Data: aws.String(email.HTML), Charset: aws.String(charset)}
	}

	msg := &types.Message{
		Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String(charset)},
		Body:    body,
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: email.To},
		Content:          &types.EmailContent{Simple: msg},
	}
	if email.ReplyTo != "" {
		input.ReplyToAddresses = []string{email.ReplyTo}
	}
	if s.cfgSet != "" {
		input.ConfigurationSetName = aws.String(s.cfgSet)
	}
	for _, k := range sortedKeys(email.Tags) {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String(k),
			Value: aws.String(tagValue(email.Tags[k])),
		})
	}

	if _, err := s.api.SendEmail(ctx, input); err != nil {
		return wrapError(err)
	}
	return nil
}

// Check reports whether the account can currently send.
func (s *Sender) Check(ctx context.Context) error {
	out, err := s.api.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return wrapError(err)
	}
	if !out.SendingEnabled {
		return errors.New("ses: sending is disabled for this account")
	}
	return nil
}

func wrapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "LimitExceededException", "SendingPausedException":
			return fmt.Errorf("%w: %v", ErrThrottled, err)
		case "MessageRejected", "MailFromDomainNotVerifiedException", "AccountSuspendedException":
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	return fmt.Errorf("ses: %w", err)
}

// tagValue renders a tag value. Presence-only tags become "true".
func tagValue(v any) string {
	switch val := v.(type) {
	case nil, struct{}:
		return "true"
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys(m dispatch.Tags) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
