package draft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailmerge/pkg/draft"
)

func TestParseDraft(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want draft.Draft
	}{
		{
			name: "plain json",
			raw:  `{"subject": "Quick question", "body": "Hi {{ first_name }},\n\nshort note."}`,
			want: draft.Draft{Subject: "Quick question", Body: "Hi {{ first_name }},\n\nshort note."},
		},
		{
			name: "code fence",
			raw:  "```json\n{\"subject\": \"Hello\", \"body\": \"Hi\"}\n```",
			want: draft.Draft{Subject: "Hello", Body: "Hi"},
		},
		{
			name: "surrounding prose and braces in strings",
			raw:  `Sure! {"subject": "Re: {pricing}", "body": "See \"plan\" {details}"} Let me know.`,
			want: draft.Draft{Subject: "Re: {pricing}", Body: `See "plan" {details}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := draft.ParseDraft(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDraft_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"no json here",
		`{"subject": "only subject"}`,
		`{"body": "only body"}`,
		`{"subject": 1, "body": "x"}`,
		`{"subject": "unterminated"`,
	} {
		_, err := draft.ParseDraft(raw)
		require.ErrorIs(t, err, draft.ErrInvalidDraft, raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p, err := draft.BuildPrompt("  write a follow-up  ", []draft.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "system", Content: "odd"},
		{Role: "user", Content: " "},
	})
	require.NoError(t, err)

	assert.Equal(t, draft.SystemPrompt, p.System)
	require.Len(t, p.Messages, 4)
	assert.Equal(t, draft.Turn{Role: draft.RoleUser, Content: "first"}, p.Messages[0])
	assert.Equal(t, draft.RoleAssistant, p.Messages[1].Role)
	assert.Equal(t, draft.RoleUser, p.Messages[2].Role)

	last := p.Messages[3]
	assert.Equal(t, draft.RoleUser, last.Role)
	assert.Contains(t, last.Content, "write a follow-up\n\n")
	assert.Contains(t, last.Content, `"subject"`)

	_, err = draft.BuildPrompt("   ", nil)
	require.ErrorIs(t, err, draft.ErrEmptyPrompt)
}
