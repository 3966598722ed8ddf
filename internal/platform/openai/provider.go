package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-worker/internal/config"
	"github.com/phrazzld/scry-worker/internal/generation"
	openai "github.com/sashabaranov/go-openai"
)

// chatCompleter is the subset of *openai.Client used by Provider.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Provider implements generation.Provider for OpenAI-compatible APIs.
type Provider struct {
	api    chatCompleter
	logger *slog.Logger
}

// NewProvider creates a Provider from the LLM configuration. A custom base URL
// allows OpenAI-compatible services.
func NewProvider(logger *slog.Logger, cfg config.LLMConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	return newProvider(openai.NewClientWithConfig(clientConfig), logger), nil
}

func newProvider(api chatCompleter, logger *slog.Logger) *Provider {
	return &Provider{
		api:    api,
		logger: logger.With("provider", "openai"),
	}
}

// Generate performs one chat completion and classifies its failure, if any.
func (p *Provider) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	chatReq := buildRequest(req)

	p.logger.DebugContext(ctx, "calling OpenAI API",
		"call", req.CallName(),
		"model", req.Model,
		"message_count", len(chatReq.Messages))

	resp, err := p.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		failure := classifyError(err)
		p.logger.DebugContext(ctx, "OpenAI API call failed",
			"call", req.CallName(),
			"kind", failure.Kind.String(),
			"error", err)
		return nil, failure
	}

	if len(resp.Choices) == 0 {
		return nil, generation.Fatal(fmt.Errorf("%w: no choices in response", generation.ErrInvalidResponse))
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, generation.Fatal(fmt.Errorf("%w: content filtered", generation.ErrContentBlocked))
	}

	return &generation.Response{
		Text:         choice.Message.Content,
		Model:        req.Model,
		Primary:      req.Primary,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// buildRequest maps the system prompt and turns to chat messages in order.
func buildRequest(req generation.Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})

	for _, turn := range req.Turns {
		role := openai.ChatMessageRoleUser
		switch turn.Role {
		case generation.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case generation.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	// Temperature 0 is omitted on the wire, so summaries use the lowest positive value.
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if !req.Primary {
		chatReq.Temperature = summaryTemperature
	}
	return chatReq
}

const summaryTemperature float32 = 0.01

// classifyError maps go-openai errors by HTTP status.
func classifyError(err error) *generation.Failure {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return generation.RateLimited(err, nil)
	case status >= http.StatusInternalServerError:
		return generation.Transient(status, err)
	default:
		failure := generation.Fatal(err)
		failure.StatusCode = status
		return failure
	}
}
