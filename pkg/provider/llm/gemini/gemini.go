// Package gemini provides a text generator backed by the Google GenAI SDK.
//
// Both the Gemini API (API key) and Vertex AI (Application Default
// Credentials) backends are supported.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/lexibot/pkg/provider/llm"
	"github.com/MrWong99/lexibot/pkg/types"
)

// Provider implements llm.Provider using Google Gemini models.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a Provider using an API key against the Gemini API backend.
func New(ctx context.Context, apiKey string, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// NewVertex creates a Provider against Vertex AI using Application Default
// Credentials. Set GOOGLE_APPLICATION_CREDENTIALS to the key file path.
func NewVertex(ctx context.Context, projectID, region string, model string) (*Provider, error) {
	if projectID == "" {
		return nil, fmt.Errorf("gemini: projectID must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: region,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create vertex client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents := buildContents(req)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: request has no messages")
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemContext != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemContext}},
		}
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini: model returned an empty reply")
	}

	result := &llm.CompletionResponse{Content: text}
	if resp.UsageMetadata != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsStreaming: true,
		SupportsVision:    true,
		ContextWindow:     1_048_576,
		MaxOutputTokens:   8_192,
	}
	if strings.Contains(strings.ToLower(p.model), "gemini-1.5-pro") {
		caps.ContextWindow = 2_097_152
	}
	return caps
}

// buildContents converts the history plus the new user content into genai
// contents. Gemini uses "model" where the rest of the codebase says
// "assistant"; system-role history entries are folded into user turns since
// the system slot is carried separately.
func buildContents(req llm.CompletionRequest) []*genai.Content {
	var contents []*genai.Content
	for _, m := range req.History {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	if req.UserContent != "" {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: req.UserContent}},
		})
	}
	return contents
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
