package gateway

import (
	"context"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/synod-dev/synod/internal/errors"
)

// DefaultOpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterBackend issues calls against an OpenAI-compatible chat
// completions API. It is the default backend: OpenRouter fronts most
// council models under a single key.
type OpenRouterBackend struct {
	client *openai.Client
}

// OpenRouterConfig configures the OpenRouter backend.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
}

// NewOpenRouterBackend creates an OpenRouter backend.
func NewOpenRouterBackend(cfg OpenRouterConfig) *OpenRouterBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultOpenRouterBaseURL
	}
	return &OpenRouterBackend{client: openai.NewClientWithConfig(clientCfg)}
}

// Name identifies the backend.
func (b *OpenRouterBackend) Name() string { return "openrouter" }

// Complete performs one chat completion call, streaming deltas through
// req.OnToken when set.
func (b *OpenRouterBackend) Complete(ctx context.Context, req Request) (*Result, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: buildMessages(req),
	}

	if req.OnToken != nil {
		return b.completeStreaming(ctx, req, chatReq)
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, normalizeOpenAIError(req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.NewGatewayError(req.Model, errors.CategoryUnknown, errors.New("no choices in response"))
	}

	msg := resp.Choices[0].Message
	return &Result{
		Content:   msg.Content,
		Reasoning: msg.ReasoningContent,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// completeStreaming consumes a completion stream, forwarding content deltas
// and aggregating the final result. Stream read errors after partial content
// are still failures: the caller needs the full response for later rounds.
func (b *OpenRouterBackend) completeStreaming(ctx context.Context, req Request, chatReq openai.ChatCompletionRequest) (*Result, error) {
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := b.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, normalizeOpenAIError(req.Model, err)
	}
	defer stream.Close()

	var content, reasoning strings.Builder
	var usage Usage

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, normalizeOpenAIError(req.Model, err)
		}

		// The usage-bearing chunk has no choices.
		if chunk.Usage != nil {
			usage.PromptTokens = chunk.Usage.PromptTokens
			usage.CompletionTokens = chunk.Usage.CompletionTokens
			usage.TotalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			req.OnToken(delta.Content)
		}
		if delta.ReasoningContent != "" {
			reasoning.WriteString(delta.ReasoningContent)
		}
	}

	return &Result{
		Content:   content.String(),
		Reasoning: reasoning.String(),
		Usage:     usage,
	}, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return messages
}
