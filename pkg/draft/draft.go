package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDraft indicates the model answer has no usable subject and body.
	ErrInvalidDraft = errors.New("invalid draft")

	// ErrEmptyPrompt indicates an empty user message.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrGenerateFailed indicates the provider call failed.
	ErrGenerateFailed = errors.New("failed to generate draft")
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one earlier message of the drafting conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Draft is a generated subject and body.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Generator produces a draft from a user request and the conversation so far.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Turn) (Draft, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, history []Turn) (Draft, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, history []Turn) (Draft, error) {
	return f(ctx, prompt, history)
}

// SystemPrompt instructs the model how to write outreach emails.
const SystemPrompt = `You write personalized cold emails from the subject and details the user provides.
Keep the email short, clear and natural, tailored to the recipient.
Structure it as a hook, the value offered, why it is relevant to the recipient, and a call to action.
Avoid filler, cliches and generic phrasing.
Never invent facts or recipient details, and never mention AI or your reasoning.
Follow the tone the user asks for, such as professional, friendly, casual or direct.
Where the recipient's name belongs, write the placeholder {{ first_name }}.
Return a complete email that is ready to send.`

const formatInstructions = `Answer with a single JSON object and nothing else, in this form:
{"subject": "<email subject>", "body": "<email body>"}`

// Prompt is a provider-neutral chat request.
type Prompt struct {
	System   string
	Messages []Turn
}

// BuildPrompt composes the system prompt, history and the final user turn
// with format instructions. Turns with an unknown role are sent as user turns.
func BuildPrompt(prompt string, history []Turn) (Prompt, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Prompt{}, ErrEmptyPrompt
	}

	msgs := make([]Turn, 0, len(history)+1)
	for _, h := range history {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		role := RoleUser
		if h.Role == RoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, Turn{Role: role, Content: h.Content})
	}
	msgs = append(msgs, Turn{Role: RoleUser, Content: prompt + "\n\n" + formatInstructions})

	return Prompt{System: SystemPrompt, Messages: msgs}, nil
}

// ParseDraft decodes a model answer. Markdown code fences and prose around
// the JSON object are tolerated.
func ParseDraft(raw string) (Draft, error) {
	obj := extractObject(raw)
	if obj == "" {
		return Draft{}, fmt.Errorf("%w: no JSON object in answer", ErrInvalidDraft)
	}

	var d Draft
	if err := json.Unmarshal([]byte(obj), &d); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	d.Subject = strings.TrimSpace(d.Subject)
	d.Body = strings.TrimSpace(d.Body)

	switch {
	case d.Subject == "":
		return Draft{}, fmt.Errorf("%w: missing subject", ErrInvalidDraft)
	case d.Body == "":
		return Draft{}, fmt.Errorf("%w: missing body", ErrInvalidDraft)
	}
	return d, nil
}

// extractObject returns the first balanced {...} in s, honoring JSON strings.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
