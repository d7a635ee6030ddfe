package gateway

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/synod-dev/synod/internal/errors"
)

// GeminiBackend issues calls against the Gemini API via the Google GenAI SDK.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(ctx context.Context, apiKey string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{client: client}, nil
}

// Name identifies the backend.
func (b *GeminiBackend) Name() string { return "gemini" }

// Complete performs one generateContent call, streaming deltas through
// req.OnToken when set. Thought parts are collected into the reasoning
// trace, never into content.
func (b *GeminiBackend) Complete(ctx context.Context, req Request) (*Result, error) {
	contents := genai.Text(req.Prompt)
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	if req.OnToken != nil {
		return b.completeStreaming(ctx, req, contents, cfg)
	}

	resp, err := b.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, normalizeGenAIError(req.Model, err)
	}

	var content, reasoning strings.Builder
	appendParts(resp, &content, &reasoning)
	if content.Len() == 0 && reasoning.Len() == 0 {
		return nil, errors.NewGatewayError(req.Model, errors.CategoryUnknown, errors.New("no candidates in response"))
	}

	return &Result{
		Content:   content.String(),
		Reasoning: reasoning.String(),
		Usage:     usageFrom(resp),
	}, nil
}

func (b *GeminiBackend) completeStreaming(ctx context.Context, req Request, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*Result, error) {
	var content, reasoning strings.Builder
	var usage Usage

	for chunk, err := range b.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
		if err != nil {
			return nil, normalizeGenAIError(req.Model, err)
		}

		before := content.Len()
		appendParts(chunk, &content, &reasoning)
		if delta := content.String()[before:]; delta != "" {
			req.OnToken(delta)
		}
		if chunk.UsageMetadata != nil {
			usage = usageFrom(chunk)
		}
	}

	return &Result{
		Content:   content.String(),
		Reasoning: reasoning.String(),
		Usage:     usage,
	}, nil
}

// appendParts splits candidate parts into content and reasoning.
func appendParts(resp *genai.GenerateContentResponse, content, reasoning *strings.Builder) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text == "" {
			continue
		}
		if part.Thought {
			reasoning.WriteString(part.Text)
		} else {
			content.WriteString(part.Text)
		}
	}
}

func usageFrom(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}
