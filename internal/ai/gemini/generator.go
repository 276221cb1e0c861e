package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/thomas-vilte/backlog-responder/internal/ai/cost"
	"github.com/thomas-vilte/backlog-responder/internal/config"
	domainErrors "github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
	"google.golang.org/genai"
)

// GenerateFunc performs the model call. It is a field so tests can replace it.
type GenerateFunc func(ctx context.Context, model string, prompt string) (*genai.GenerateContentResponse, error)

// Generator drafts issue replies with a Vertex AI hosted Gemini model.
type Generator struct {
	*GeminiProvider
	generateFn GenerateFunc
	costs      *cost.Calculator
}

var _ ports.TextGenerator = (*Generator)(nil)

// NewGenerator creates a Vertex AI backed client. Credentials come from the
// environment (Application Default Credentials); none are passed explicitly.
func NewGenerator(ctx context.Context, cfg config.GCPConfig) (*Generator, error) {
	if cfg.ProjectID == "" || cfg.GeminiRegion == "" || cfg.GeminiModel == "" {
		return nil, domainErrors.ErrConfigMissing.
			WithContext("component", "gemini")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.GeminiRegion,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		if isAuthError(err) {
			return nil, domainErrors.ErrAIUnauthorized.WithError(err)
		}
		return nil, domainErrors.NewAppError(domainErrors.TypeAI, "error creating AI client", err)
	}

	return newGenerator(NewGeminiProvider(client, cfg.GeminiModel)), nil
}

func newGenerator(provider *GeminiProvider) *Generator {
	g := &Generator{
		GeminiProvider: provider,
		costs:          cost.NewCalculator(),
	}
	g.generateFn = g.defaultGenerate
	return g
}

func (g *Generator) defaultGenerate(ctx context.Context, model string, prompt string) (*genai.GenerateContentResponse, error) {
	return g.Client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
}

// Generate sends prompt to the model once and returns the concatenated text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContext(ctx)
	model := g.GetModelName()

	log.Debug("calling gemini API",
		"provider", g.GetProviderName(),
		"model", model,
		"prompt_length", len(prompt))

	start := time.Now()
	resp, err := g.generateFn(ctx, model, prompt)
	if err != nil {
		log.Error("gemini API call failed",
			"error", err,
			"model", model)
		return "", classifyError(err)
	}

	text := formatResponse(resp)
	if strings.TrimSpace(text) == "" {
		log.Error("empty response from gemini",
			"model", model,
			"finish_reason", finishReason(resp))
		return "", domainErrors.ErrAIEmptyResponse.
			WithContext("finish_reason", finishReason(resp))
	}

	if usage := extractUsage(resp); usage != nil {
		usage.Model = model
		usage.DurationMs = time.Since(start).Milliseconds()
		usage.CostUSD = g.costs.EstimateCost(model, usage.InputTokens, usage.OutputTokens)
		log.Info("gemini response received",
			"model", model,
			"response_length", len(text),
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens,
			"estimated_cost_usd", usage.CostUSD,
			"duration_ms", usage.DurationMs)
	} else {
		log.Info("gemini response received",
			"model", model,
			"response_length", len(text),
			"duration_ms", time.Since(start).Milliseconds())
	}

	return text, nil
}

func classifyError(err error) error {
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "quota") ||
		strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "resource exhausted") ||
		strings.Contains(errMsg, "resource_exhausted") {
		return domainErrors.ErrAIQuotaExceeded.WithError(err)
	}

	if isAuthError(err) {
		return domainErrors.ErrAIUnauthorized.WithError(err)
	}

	return domainErrors.ErrAIGeneration.WithError(err)
}

func isAuthError(err error) bool {
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "unauthenticated") ||
		strings.Contains(errMsg, "permission_denied") ||
		strings.Contains(errMsg, "permission denied") ||
		strings.Contains(errMsg, "could not find default credentials") ||
		strings.Contains(errMsg, "unauthorized")
}
