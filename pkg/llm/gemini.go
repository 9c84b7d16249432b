package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiEngine implements the ReasoningEngine interface on the Gemini API
type GeminiEngine struct {
	client  *genai.Client
	model   string
	options GeminiOptions
}

// GeminiOptions configures the Gemini engine
type GeminiOptions struct {
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// NewGeminiEngine creates a new Gemini engine
func NewGeminiEngine(ctx context.Context, apiKey, model string, options *GeminiOptions) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if options == nil {
		options = &GeminiOptions{
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     2 * time.Minute,
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEngine{
		client:  client,
		model:   model,
		options: *options,
	}, nil
}

// Generate produces a completion for a prompt
func (e *GeminiEngine) Generate(ctx context.Context, prompt string) (string, error) {
	text, _, _, err := e.GenerateWithUsage(ctx, prompt, "")
	return text, err
}

// GenerateJSON produces a completion constrained to valid JSON
func (e *GeminiEngine) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	text, _, _, err := e.GenerateWithUsage(ctx, prompt, "application/json")
	return text, err
}

// GenerateWithUsage produces a completion and reports token usage. An empty
// mimeType leaves the response format unconstrained.
func (e *GeminiEngine) GenerateWithUsage(ctx context.Context, prompt, mimeType string) (string, int, int, error) {
	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	temperature := float32(e.options.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(e.options.MaxTokens),
	}
	if mimeType != "" {
		config.ResponseMIMEType = mimeType
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return "", 0, 0, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", 0, 0, fmt.Errorf("gemini returned empty response")
	}

	var promptTokens, completionTokens int
	if result.UsageMetadata != nil {
		promptTokens = int(result.UsageMetadata.PromptTokenCount)
		completionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return text, promptTokens, completionTokens, nil
}

// Model returns the configured model name
func (e *GeminiEngine) Model() string {
	return e.model
}
