package ses

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

func (m *mockAPI) GetAccount(ctx context.Context, params *sesv2.GetAccountInput, _ ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sesv2.GetAccountOutput)
	return out, args.Error(1)
}

type mockAPIError struct {
	code string
}

func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return "mock" }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: mock", e.code) }

func TestNewWithAPI_RequiresSender(t *testing.T) {
	t.Parallel()

	_, err := NewWithAPI(&mockAPI{}, Config{})
	require.ErrorIs(t, err, ErrMissingSender)
}

func TestSender_Send(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		simple := in.Content.Simple
		return aws.ToString(in.FromEmailAddress) == "Team <team@example.com>" &&
			in.Destination.ToAddresses[0] == "a@x.com" &&
			aws.ToString(simple.Subject.Data) == "Hi" &&
			aws.ToString(simple.Body.Text.Data) == "body" &&
			aws.ToString(simple.Body.Html.Data) == "<p>body</p>" &&
			in.ReplyToAddresses[0] == "reply@example.com" &&
			aws.ToString(in.ConfigurationSetName) == "outreach" &&
			len(in.EmailTags) == 2 &&
			aws.ToString(in.EmailTags[0].Name) == "campaign" &&
			aws.ToString(in.EmailTags[1].Value) == "true"
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil).Once()

	s, err := NewWithAPI(api, Config{SenderEmail: "team@example.com", SenderName: "Team", ConfigurationSet: "outreach"})
	require.NoError(t, err)

	err = s.Send(context.Background(), &dispatch.Email{
		To:      []string{"a@x.com"},
		Subject: "Hi",
		Text:    "body",
		HTML:    "<p>body</p>",
		ReplyTo: "reply@example.com",
		Tags:    dispatch.Tags{"campaign": "q3", "cold": struct{}{}},
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestSender_SendTextOnly(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return in.Content.Simple.Body.Html == nil && in.Content.Simple.Body.Text != nil
	})).Return(&sesv2.SendEmailOutput{}, nil).Once()

	s, err := NewWithAPI(api, Config{SenderEmail: "team@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), &dispatch.Email{To: []string{"a@x.com"}, Subject: "Hi", Text: "body"}))
	api.AssertExpectations(t)
}

func TestSender_SendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want error
		name string
	}{
		{name: "throttled", err: &mockAPIError{code: "TooManyRequestsException"}, want: ErrThrottled},
		{name: "rejected", err: &mockAPIError{code: "MessageRejected"}, want: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &mockAPI{}
			api.On("SendEmail", mock.Anything, mock.Anything).Return(nil, tt.err)

			s, err := NewWithAPI(api, Config{SenderEmail: "team@example.com"})
			require.NoError(t, err)

			err = s.Send(context.Background(), &dispatch.Email{To: []string{"a@x.com"}})
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("other", func(t *testing.T) {
		t.Parallel()

		api := &mockAPI{}
		api.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

		s, err := NewWithAPI(api, Config{SenderEmail: "team@example.com"})
		require.NoError(t, err)

		err = s.Send(context.Background(), &dispatch.Email{To: []string{"a@x.com"}})
		require.ErrorContains(t, err, "dial tcp")
		assert.NotErrorIs(t, err, ErrThrottled)
	})
}

func TestSender_Check(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	api.On("GetAccount", mock.Anything, mock.Anything).Return(&sesv2.GetAccountOutput{SendingEnabled: true}, nil).Once()
	api.On("GetAccount", mock.Anything, mock.Anything).Return(&sesv2.GetAccountOutput{SendingEnabled: false}, nil).Once()

	s, err := NewWithAPI(api, Config{SenderEmail: "team@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.Check(context.Background()))
	require.Error(t, s.Check(context.Background()))
}
