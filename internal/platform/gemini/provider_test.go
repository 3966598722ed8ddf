package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/scry-worker/internal/config"
	"github.com/phrazzld/scry-worker/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels records GenerateContent calls and returns the configured result
type fakeModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:     "gemini",
		GeminiAPIKey: "test-api-key",
		ModelName:    "gemini-2.0-flash",
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textResponse(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
			FinishReason: reason,
		}},
	}
}

func retryInfo(delay any) map[string]any {
	return map[string]any{
		"@type":      retryInfoType,
		"retryDelay": delay,
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		kind       generation.FailureKind
		statusCode int
		retryAfter *time.Duration
	}{
		{
			name:       "429 with retry info",
			err:        genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Details: []map[string]any{retryInfo("3s")}},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
			retryAfter: genai.Ptr(3 * time.Second),
		},
		{
			name: "429 with retry info after other details",
			err: genai.APIError{Code: 429, Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
				retryInfo("17s"),
			}},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
			retryAfter: genai.Ptr(17 * time.Second),
		},
		{
			name:       "429 with malformed retry delay",
			err:        genai.APIError{Code: 429, Details: []map[string]any{retryInfo("abc")}},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "429 with retry delay in another unit",
			err:        genai.APIError{Code: 429, Details: []map[string]any{retryInfo("500ms")}},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "429 with fractional retry delay",
			err:        genai.APIError{Code: 429, Details: []map[string]any{retryInfo("0.5s")}},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
			retryAfter: genai.Ptr(500 * time.Millisecond),
		},
		{
			name:       "429 with non-string retry delay",
			err:        genai.APIError{Code: 429, Details: []map[string]any{retryInfo(3)}},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "429 without details",
			err:        genai.APIError{Code: 429},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "resource exhausted status without 429 code",
			err:        genai.APIError{Status: "RESOURCE_EXHAUSTED"},
			kind:       generation.FailureRateLimited,
			statusCode: 429,
		},
		{
			name:       "500 internal",
			err:        genai.APIError{Code: 500, Status: "INTERNAL"},
			kind:       generation.FailureTransient,
			statusCode: 500,
		},
		{
			name:       "503 unavailable behind a pointer",
			err:        &genai.APIError{Code: 503, Status: "UNAVAILABLE"},
			kind:       generation.FailureTransient,
			statusCode: 503,
		},
		{
			name:       "wrapped 502",
			err:        fmt.Errorf("transport: %w", genai.APIError{Code: 502}),
			kind:       generation.FailureTransient,
			statusCode: 502,
		},
		{
			name:       "400 invalid argument",
			err:        genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"},
			kind:       generation.FailureFatal,
			statusCode: 400,
		},
		{
			name:       "403 permission denied",
			err:        genai.APIError{Code: 403, Status: "PERMISSION_DENIED"},
			kind:       generation.FailureFatal,
			statusCode: 403,
		},
		{
			name: "non API error",
			err:  errors.New("dial tcp: connection refused"),
			kind: generation.FailureFatal,
		},
		{
			name: "context cancellation",
			err:  context.Canceled,
			kind: generation.FailureFatal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			failure := classifyError(tc.err)

			assert.Equal(t, tc.kind, failure.Kind)
			assert.Equal(t, tc.statusCode, failure.StatusCode)
			assert.Equal(t, tc.err, failure.Cause)
			if tc.retryAfter == nil {
				assert.Nil(t, failure.RetryAfter)
			} else {
				require.NotNil(t, failure.RetryAfter)
				assert.Equal(t, *tc.retryAfter, *failure.RetryAfter)
			}
		})
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	req := generation.Request{
		SystemPrompt: "Be concise.",
		Turns: []generation.Turn{
			{Role: generation.RoleSystem, Content: "Answer in English."},
			{Role: generation.RoleUser, Content: "Hi"},
			{Role: generation.RoleAssistant, Content: "Hello"},
			{Role: generation.RoleUser, Content: "Summarize"},
		},
		Model:   "gemini-2.0-flash",
		Primary: true,
	}

	contents, cfg := buildRequest(req)

	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "Hello", contents[1].Parts[0].Text)
	assert.Equal(t, genai.RoleUser, contents[2].Role)

	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.SystemInstruction.Parts, 2)
	assert.Equal(t, "Be concise.", cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "Answer in English.", cfg.SystemInstruction.Parts[1].Text)
	assert.Nil(t, cfg.Temperature)

	req.Primary = false
	_, cfg = buildRequest(req)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0), *cfg.Temperature)
}

func TestProviderGenerate(t *testing.T) {
	t.Parallel()

	req := generation.Request{
		SystemPrompt: "Be concise.",
		Turns:        []generation.Turn{{Role: generation.RoleUser, Content: "Hi"}},
		Model:        "gemini-2.0-flash",
		Primary:      true,
	}

	t.Run("returns text of first candidate", func(t *testing.T) {
		models := &fakeModels{resp: textResponse("Hello there", genai.FinishReasonStop)}
		provider := newProvider(models, newTestLogger())

		resp, err := provider.Generate(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "Hello there", resp.Text)
		assert.Equal(t, "gemini-2.0-flash", resp.Model)
		assert.True(t, resp.Primary)
		assert.Equal(t, string(genai.FinishReasonStop), resp.FinishReason)
		assert.Equal(t, "gemini-2.0-flash", models.model)
		assert.Len(t, models.contents, 1)
	})

	t.Run("skips thought parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: "answer"},
				}},
			}},
		}
		provider := newProvider(&fakeModels{resp: resp}, newTestLogger())

		out, err := provider.Generate(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "answer", out.Text)
	})

	t.Run("classifies API errors", func(t *testing.T) {
		apiErr := genai.APIError{Code: 503}
		provider := newProvider(&fakeModels{err: apiErr}, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		failure := generation.Classify(err)
		assert.Equal(t, generation.FailureTransient, failure.Kind)
		assert.Equal(t, 503, failure.StatusCode)
	})

	t.Run("blocked content is fatal", func(t *testing.T) {
		provider := newProvider(&fakeModels{resp: textResponse("", genai.FinishReasonSafety)}, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.Equal(t, generation.FailureFatal, generation.Classify(err).Kind)
	})

	t.Run("empty candidates are fatal", func(t *testing.T) {
		provider := newProvider(&fakeModels{resp: &genai.GenerateContentResponse{}}, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
		assert.Equal(t, generation.FailureFatal, generation.Classify(err).Kind)
	})

	t.Run("nil response is fatal", func(t *testing.T) {
		provider := newProvider(&fakeModels{}, newTestLogger())

		_, err := provider.Generate(context.Background(), req)

		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})
}

func TestNewProviderValidation(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(context.Background(), nil, testLLMConfig())
	assert.Error(t, err)

	cfg := testLLMConfig()
	cfg.GeminiAPIKey = ""
	_, err = NewProvider(context.Background(), newTestLogger(), cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
