package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailmerge/pkg/draft"
)

type fakeAPI struct {
	err   error
	input *bedrockruntime.InvokeModelInput
	body  string
}

func (f *fakeAPI) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{body: `{"content":[{"type":"text","text":"{\"subject\":\"Hi\","},{"type":"text","text":"\"body\":\"Hello {{ first_name }}\"}"}]}`}
	g := NewWithAPI(api, Config{Temperature: 0.4})

	d, err := g.Generate(context.Background(), "intro email", []draft.Turn{
		{Role: draft.RoleAssistant, Content: "orphan"},
		{Role: draft.RoleUser, Content: "earlier"},
	})
	require.NoError(t, err)
	assert.Equal(t, draft.Draft{Subject: "Hi", Body: "Hello {{ first_name }}"}, d)

	assert.Equal(t, defaultModelID, aws.ToString(api.input.ModelId))
	assert.Equal(t, contentTypeJSON, aws.ToString(api.input.ContentType))

	var req request
	require.NoError(t, json.Unmarshal(api.input.Body, &req))
	assert.Equal(t, anthropicVersion, req.AnthropicVersion)
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
	assert.InDelta(t, 0.4, req.Temperature, 1e-9)
	assert.Equal(t, draft.SystemPrompt, req.System)

	// Leading assistant turn dropped, consecutive user turns merged.
	require.Len(t, req.Messages, 1)
	assert.Equal(t, draft.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content[0].Text, "earlier\n\nintro email")
}

func TestGenerator_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewWithAPI(&fakeAPI{err: errors.New("throttled")}, Config{}).Generate(context.Background(), "x", nil)
	require.ErrorIs(t, err, draft.ErrGenerateFailed)

	_, err = NewWithAPI(&fakeAPI{body: "not json"}, Config{}).Generate(context.Background(), "x", nil)
	require.ErrorIs(t, err, draft.ErrGenerateFailed)

	_, err = NewWithAPI(&fakeAPI{body: `{"content":[{"type":"text","text":"sorry"}]}`}, Config{}).Generate(context.Background(), "x", nil)
	require.ErrorIs(t, err, draft.ErrInvalidDraft)

	_, err = NewWithAPI(&fakeAPI{}, Config{}).Generate(context.Background(), " ", nil)
	require.ErrorIs(t, err, draft.ErrEmptyPrompt)
}

func TestToMessages_Alternates(t *testing.T) {
	t.Parallel()

	msgs := toMessages([]draft.Turn{
		{Role: draft.RoleUser, Content: "a"},
		{Role: draft.RoleAssistant, Content: "b"},
		{Role: draft.RoleAssistant, Content: "c"},
		{Role: draft.RoleUser, Content: "d"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "b\n\nc", msgs[1].Content[0].Text)
}
