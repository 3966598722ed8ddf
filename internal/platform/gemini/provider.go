package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/scry-worker/internal/config"
	"github.com/phrazzld/scry-worker/internal/generation"
	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used by Provider.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Provider implements generation.Provider using the Gemini API.
type Provider struct {
	// models performs the GenerateContent calls
	models contentGenerator

	// logger is used for structured logging
	logger *slog.Logger
}

// NewProvider creates a Gemini-backed provider from the LLM configuration.
//
// Parameters:
//   - ctx: Context for client initialization
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration holding the Gemini API key
//
// Returns:
//   - A ready Provider or an error wrapping generation.ErrInvalidConfig
func NewProvider(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	logger.InfoContext(ctx, "Gemini provider initialized")
	return newProvider(client.Models, logger), nil
}

// newProvider wires a Provider around any content generator.
func newProvider(models contentGenerator, logger *slog.Logger) *Provider {
	return &Provider{
		models: models,
		logger: logger.With("provider", "gemini"),
	}
}

// Generate performs one GenerateContent call and classifies its failure, if any.
func (p *Provider) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	contents, genConfig := buildRequest(req)

	p.logger.DebugContext(ctx, "calling Gemini API",
		"call", req.CallName(),
		"model", req.Model,
		"content_count", len(contents))

	resp, err := p.models.GenerateContent(ctx, req.Model, contents, genConfig)
	if err != nil {
		failure := classifyError(err)
		p.logger.DebugContext(ctx, "Gemini API call failed",
			"call", req.CallName(),
			"kind", failure.Kind.String(),
			"error", err)
		return nil, failure
	}

	return parseResponse(resp, req)
}

// buildRequest converts a generation request into Gemini contents and config.
// System turns are folded into the system instruction; assistant turns use the model role.
func buildRequest(req generation.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	system := &genai.Content{
		Parts: []*genai.Part{{Text: req.SystemPrompt}},
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		if turn.Role == generation.RoleSystem {
			system.Parts = append(system.Parts, &genai.Part{Text: turn.Content})
			continue
		}

		role := genai.RoleUser
		if turn.Role == generation.RoleAssistant {
			role = genai.RoleModel
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: system,
	}
	if !req.Primary {
		genConfig.Temperature = genai.Ptr[float32](0)
	}

	return contents, genConfig
}

// parseResponse extracts the text of the first candidate.
func parseResponse(resp *genai.GenerateContentResponse, req generation.Request) (*generation.Response, error) {
	if resp == nil {
		return nil, generation.Fatal(fmt.Errorf("%w: nil response", generation.ErrInvalidResponse))
	}

	if len(resp.Candidates) == 0 {
		return nil, generation.Fatal(fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse))
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, generation.Fatal(fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked))
	}

	if candidate.Content == nil {
		return nil, generation.Fatal(fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse))
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}

	return &generation.Response{
		Text:         text.String(),
		Model:        req.Model,
		Primary:      req.Primary,
		FinishReason: string(candidate.FinishReason),
	}, nil
}
