package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"maps"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

// ComposerConfig holds defaults applied to every composed email.
type ComposerConfig struct {
	Tags    Tags
	Headers map[string]string
	// Layout wraps the HTML part. It is executed with
	// {Content template.HTML, Subject string, Email string}.
	Layout    *template.Template
	From      string
	ReplyTo   string
	PlainText bool // skip the HTML part
}

// Composer builds emails from rendered payloads. It is safe for concurrent use.
type Composer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	cfg    ComposerConfig
}

// NewComposer creates a composer with the given defaults.
func NewComposer(cfg ComposerConfig) *Composer {
	return &Composer{
		cfg: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

type layoutData struct {
	Content template.HTML
	Subject string
	Email   string
}

// Compose converts p into an Email with the given subject.
func (c *Composer) Compose(p personalize.Payload, subject string) (*Email, error) {
	email := &Email{
		To:      []string{p.Email},
		Subject: subject,
		Text:    p.Body,
		From:    c.cfg.From,
		ReplyTo: c.cfg.ReplyTo,
		Tags:    maps.Clone(c.cfg.Tags),
		Headers: maps.Clone(c.cfg.Headers),
	}
	if c.cfg.PlainText {
		return email, nil
	}

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(p.Body), &buf); err != nil {
		return nil, fmt.Errorf("%w: markdown: %v", ErrComposeFailed, err)
	}
	content := c.policy.SanitizeBytes(buf.Bytes())

	if c.cfg.Layout == nil {
		email.HTML = string(content)
		return email, nil
	}

	var out bytes.Buffer
	data := layoutData{
		Content: template.HTML(content), //nolint:gosec // sanitized above
		Subject: subject,
		Email:   p.Email,
	}
	if err := c.cfg.Layout.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("%w: layout: %v", ErrComposeFailed, err)
	}
	email.HTML = out.String()
	return email, nil
}
