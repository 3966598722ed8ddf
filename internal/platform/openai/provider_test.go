package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/scry-worker/internal/config"
	"github.com/phrazzld/scry-worker/internal/generation"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func choiceResponse(content string, reason openai.FinishReason) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: reason,
		}},
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		kind       generation.FailureKind
		statusCode int
	}{
		{
			name:       "429 api error",
			err:        &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "500 api error",
			err:        &openai.APIError{HTTPStatusCode: 500},
			kind:       generation.FailureTransient,
			statusCode: 500,
		},
		{
			name:       "502 request error",
			err:        &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")},
			kind:       generation.FailureTransient,
			statusCode: 502,
		},
		{
			name:       "wrapped 429 request error",
			err:        fmt.Errorf("call failed: %w", &openai.RequestError{HTTPStatusCode: 429}),
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "401 api error",
			err:        &openai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key"},
			kind:       generation.FailureFatal,
			statusCode: 401,
		},
		{
			name: "network error",
			err:  errors.New("dial tcp: i/o timeout"),
			kind: generation.FailureFatal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			failure := classifyError(tc.err)

			assert.Equal(t, tc.kind, failure.Kind)
			assert.Equal(t, tc.statusCode, failure.StatusCode)
			assert.Same(t, tc.err, failure.Cause)
			assert.Nil(t, failure.RetryAfter)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	req := generation.Request{
		SystemPrompt: "Be concise.",
		Turns: []generation.Turn{
			{Role: generation.RoleUser, Content: "Hi"},
			{Role: generation.RoleAssistant, Content: "Hello"},
			{Role: generation.RoleSystem, Content: "Stay on topic."},
		},
		Model:   "gpt-4o-mini",
		Primary: true,
	}

	chatReq := buildRequest(req)

	assert.Equal(t, "gpt-4o-mini", chatReq.Model)
	require.Len(t, chatReq.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, chatReq.Messages[0].Role)
	assert.Equal(t, "Be concise.", chatReq.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, chatReq.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, chatReq.Messages[2].Role)
	assert.Equal(t, openai.ChatMessageRoleSystem, chatReq.Messages[3].Role)
	assert.Zero(t, chatReq.Temperature)

	req.Primary = false
	chatReq = buildRequest(req)
	assert.Equal(t, summaryTemperature, chatReq.Temperature)
}

func TestProviderGenerate(t *testing.T) {
	t.Parallel()

	req := generation.Request{
		SystemPrompt: "Be concise.",
		Turns:        []generation.Turn{{Role: generation.RoleUser, Content: "Hi"}},
		Model:        "gpt-4o-mini",
	}

	t.Run("returns first choice", func(t *testing.T) {
		api := &fakeCompleter{resp: choiceResponse("Hello there", openai.FinishReasonStop)}
		provider := newProvider(api, newTestLogger())

		resp, err := provider.Generate(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "Hello there", resp.Text)
		assert.Equal(t, "gpt-4o-mini", resp.Model)
		assert.False(t, resp.Primary)
		assert.Equal(t, "stop", resp.FinishReason)
		assert.Len(t, api.req.Messages, 2)
	})

	t.Run("classifies API errors", func(t *testing.T) {
		provider := newProvider(&fakeCompleter{err: &openai.APIError{HTTPStatusCode: 429}}, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		assert.Equal(t, generation.FailureRateLimited, generation.Classify(err).Kind)
	})

	t.Run("content filter is fatal", func(t *testing.T) {
		api := &fakeCompleter{resp: choiceResponse("", openai.FinishReasonContentFilter)}
		provider := newProvider(api, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.Equal(t, generation.FailureFatal, generation.Classify(err).Kind)
	})

	t.Run("no choices is fatal", func(t *testing.T) {
		provider := newProvider(&fakeCompleter{}, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	cfg := config.LLMConfig{Provider: "openai", OpenAIAPIKey: "sk-test", OpenAIBaseURL: "http://localhost:8080/v1"}

	provider, err := NewProvider(newTestLogger(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, provider)

	_, err = NewProvider(nil, cfg)
	assert.Error(t, err)

	cfg.OpenAIAPIKey = ""
	_, err = NewProvider(newTestLogger(), cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
