package refine

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/trace"

	smotel "github.com/MathFreedom/SafeMask/internal/otel"
)

// OpenAIProvider implements Provider against the OpenAI chat API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI provider with the given API key and model.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}
}

// NewOpenAIProviderWithBaseURL creates an OpenAI provider pointing at a
// custom endpoint (e.g. a mock server in tests). baseURL is scheme+host
// without path; the client appends /v1.
func NewOpenAIProviderWithBaseURL(apiKey, model, baseURL string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	return &OpenAIProvider{client: openai.NewClientWithConfig(config), model: model}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends a single-message chat completion request. Low temperature:
// refinement prompts want deterministic, structured output.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.generate",
		trace.WithAttributes(
			smotel.GenAISystem.String("openai"),
			smotel.GenAIRequestModel.String(p.model),
			smotel.GenAIRequestTemperature.Float64(0.1),
		))
	defer span.End()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.1,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("openai api call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api call: no choices returned")
	}

	span.SetAttributes(
		smotel.GenAIUsageInputTokens.Int(resp.Usage.PromptTokens),
		smotel.GenAIUsageOutputTokens.Int(resp.Usage.CompletionTokens),
		smotel.GenAIResponseFinishReason.String(string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}
