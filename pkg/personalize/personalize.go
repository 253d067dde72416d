package personalize

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/dmitrymomot/mailmerge/pkg/binder"
	"github.com/dmitrymomot/mailmerge/pkg/recipient"
)

// Mode selects how the template is bound to recipients.
type Mode string

const (
	ModePersonalized Mode = "personalized"
	ModeSingle       Mode = "single"
)

// ParseMode converts a mode name. The empty string means ModePersonalized.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModePersonalized:
		return ModePersonalized, nil
	case ModeSingle:
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Policy decides what happens when one recipient fails to render.
type Policy int

const (
	// FailFast aborts on the first failing recipient.
	FailFast Policy = iota
	// Collect skips failing recipients and reports them in Result.Skipped.
	Collect
)

// ParsePolicy converts "fail_fast" or "collect". The empty string means FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast":
		return FailFast, nil
	case "collect":
		return Collect, nil
	default:
		return FailFast, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

func (p Policy) String() string {
	if p == Collect {
		return "collect"
	}
	return "fail_fast"
}

// Recipient is one rendering target.
type Recipient struct {
	Fields map[string]any
	Email  string
}

// Payload is a rendered body addressed to one recipient.
type Payload struct {
	Email string `json:"email"`
	Body  string `json:"rendered_body"`
}

// Result holds the rendered payloads in input order and any skipped recipients.
type Result struct {
	Payloads []Payload
	Skipped  []RecipientError
}

type config struct {
	logger *slog.Logger
	policy Policy
}

// Option configures Personalize.
type Option func(*config)

// WithPolicy sets the recipient error policy.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithLogger sets the logger used to report skipped recipients.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Personalize renders tpl for every recipient according to mode.
// An empty recipient list yields an empty result, except in ModeSingle where
// it fails with ErrEmptyBatch.
func Personalize(tpl *binder.Template, recipients []Recipient, mode Mode, opts ...Option) (*Result, error) {
	cfg := &config{
		logger: slog.New(slog.DiscardHandler),
		policy: FailFast,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeSingle:
		return single(tpl, recipients)
	default:
		return personalized(tpl, recipients, cfg)
	}
}

func personalized(tpl *binder.Template, recipients []Recipient, cfg *config) (*Result, error) {
	res := &Result{Payloads: make([]Payload, 0, len(recipients))}

	for i, r := range recipients {
		body, err := tpl.Render(bindings(r))
		if err != nil {
			rerr := RecipientError{Index: i, Email: r.Email, Err: err}
			if cfg.policy == FailFast {
				return nil, &rerr
			}
			cfg.logger.Warn("skipping recipient",
				slog.Int("index", i),
				slog.String("email", r.Email),
				slog.String("error", err.Error()),
			)
			res.Skipped = append(res.Skipped, rerr)
			continue
		}
		res.Payloads = append(res.Payloads, Payload{Email: r.Email, Body: body})
	}

	return res, nil
}

func single(tpl *binder.Template, recipients []Recipient) (*Result, error) {
	if len(recipients) == 0 {
		return nil, ErrEmptyBatch
	}

	base := recipients[0]
	body, err := tpl.Render(bindings(base))
	if err != nil {
		return nil, &RecipientError{Index: 0, Email: base.Email, Err: err}
	}

	res := &Result{Payloads: make([]Payload, len(recipients))}
	for i, r := range recipients {
		res.Payloads[i] = Payload{Email: r.Email, Body: body}
	}
	return res, nil
}

// bindings returns a copy of the recipient fields with email filled in.
func bindings(r Recipient) map[string]any {
	b := make(map[string]any, len(r.Fields)+1)
	maps.Copy(b, r.Fields)
	if _, ok := b[recipient.FieldEmail]; !ok {
		b[recipient.FieldEmail] = r.Email
	}
	return b
}

// FromRecords converts validated records into rendering targets.
func FromRecords(records []recipient.Record) []Recipient {
	out := make([]Recipient, len(records))
	for i, rec := range records {
		out[i] = Recipient{Email: rec.Email(), Fields: rec.Fields()}
	}
	return out
}

// Emails returns the payload addresses in order.
func (r *Result) Emails() []string {
	out := make([]string, len(r.Payloads))
	for i, p := range r.Payloads {
		out[i] = p.Email
	}
	return out
}
