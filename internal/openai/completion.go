package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultCompletionModel = openai.GPT4oMini
	DefaultTemperature     = float32(0.2)
	DefaultMaxTokens       = 800
)

var (
	// ErrContentPolicy is returned when the provider refuses the prompt or
	// filters the answer. Callers show a fixed fallback instead of the raw error.
	ErrContentPolicy = errors.New("completion rejected by content policy")
	// ErrNoChoices is returned when the API answers without any choice
	ErrNoChoices = errors.New("no completion choices returned")
)

// ChatAPI is the subset of the go-openai client used for completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompletionParams override the configured generation parameters.
// Zero values keep the defaults.
type CompletionParams struct {
	Model       string
	Temperature *float32
	MaxTokens   int
}

// CompletionClient sends assembled prompts to a hosted chat model.
type CompletionClient struct {
	api         ChatAPI
	model       string
	temperature float32
	maxTokens   int
}

func NewCompletionClient(api ChatAPI, cfg Config) *CompletionClient {
	model := cfg.CompletionModel
	if model == "" {
		model = DefaultCompletionModel
	}
	temperature := cfg.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &CompletionClient{
		api:         api,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete sends prompt as a single user message and returns the answer text.
func (c *CompletionClient) Complete(ctx context.Context, prompt string, params CompletionParams) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Model != "" {
		req.Model = params.Model
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}
	// The request field is omitempty, so an exact zero would fall back to
	// the provider default of 1.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if isContentPolicyError(err) {
			return "", fmt.Errorf("%w: %v", ErrContentPolicy, err)
		}
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", ErrContentPolicy
	}

	answer := strings.TrimSpace(choice.Message.Content)
	if answer == "" {
		return "", fmt.Errorf("empty completion (finish reason %q)", choice.FinishReason)
	}
	return answer, nil
}

func isContentPolicyError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch fmt.Sprint(apiErr.Code) {
	case "content_policy_violation", "content_filter":
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "content management policy")
}
