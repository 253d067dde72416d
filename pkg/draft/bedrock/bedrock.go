// Package bedrock generates drafts with Anthropic models on Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/dmitrymomot/mailmerge/pkg/draft"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	defaultRegion    = "us-east-1"
	defaultModelID   = "anthropic.claude-3-haiku-20240307-v1:0"
	defaultMaxTokens = 1024
	contentTypeJSON  = "application/json"
)

// Config holds Bedrock settings. Empty keys fall back to the default AWS
// credential chain.
type Config struct {
	Region      string  `mapstructure:"region"`
	AccessKey   string  `mapstructure:"access_key"`
	SecretKey   string  `mapstructure:"secret_key"`
	ModelID     string  `mapstructure:"model_id"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// InvokeModelAPI is the subset of *bedrockruntime.Client used by Generator.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Generator implements draft.Generator.
type Generator struct {
	api InvokeModelAPI
	cfg Config
}

// New loads AWS configuration and creates a Generator.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI creates a Generator over an existing client.
func NewWithAPI(api InvokeModelAPI, cfg Config) *Generator {
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Generator{api: api, cfg: cfg}
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature,omitempty"`
}

type response struct {
	Content []contentBlock `json:"content"`
}

// Generate implements draft.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, history []draft.Turn) (draft.Draft, error) {
	p, err := draft.BuildPrompt(prompt, history)
	if err != nil {
		return draft.Draft{}, err
	}

	body, err := json.Marshal(request{
		AnthropicVersion: anthropicVersion,
		System:           p.System,
		Messages:         toMessages(p.Messages),
		MaxTokens:        g.cfg.MaxTokens,
		Temperature:      g.cfg.Temperature,
	})
	if err != nil {
		return draft.Draft{}, fmt.Errorf("%w: encode request: %v", draft.ErrGenerateFailed, err)
	}

	out, err := g.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.cfg.ModelID),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return draft.Draft{}, fmt.Errorf("%w: %w", draft.ErrGenerateFailed, err)
	}

	var resp response
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return draft.Draft{}, fmt.Errorf("%w: decode response: %v", draft.ErrGenerateFailed, err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return draft.ParseDraft(text.String())
}

// toMessages merges consecutive turns of the same role; the messages API
// requires alternating roles starting with the user.
func toMessages(turns []draft.Turn) []message {
	var msgs []message
	for _, t := range turns {
		if len(msgs) == 0 && t.Role != draft.RoleUser {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == t.Role {
			last := &msgs[n-1].Content[0]
			last.Text += "\n\n" + t.Content
			continue
		}
		msgs = append(msgs, message{
			Role:    t.Role,
			Content: []contentBlock{{Type: "text", Text: t.Content}},
		})
	}
	return msgs
}
