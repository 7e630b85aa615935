package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini scores through the Gemini API.
type Gemini struct {
	apiKey string
	model  string
	client *genai.Client
}

func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{apiKey: apiKey, model: model}
}

// Load creates the client and confirms the model exists.
func (g *Gemini) Load(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("gemini API key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if _, err := client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("failed to get Gemini model %s: %w", g.model, err)
	}
	g.client = client
	return nil
}

func (g *Gemini) CountTokens(ctx context.Context, text string) (int, error) {
	if g.client == nil {
		return 0, ErrModelUnavailable
	}
	resp, err := g.client.Models.CountTokens(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	if g.client == nil {
		return "", ErrModelUnavailable
	}
	content := genai.NewContentFromText(prompt, genai.RoleUser)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(params.Temperature)),
		TopP:            genai.Ptr(float32(params.TopP)),
		MaxOutputTokens: int32(params.MaxTokens),
		StopSequences:   params.Stop,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return resp.Text(), nil
}
