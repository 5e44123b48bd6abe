package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chriscow/voicechat/pkg/ai"
	"github.com/chriscow/voicechat/pkg/ai/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Config configures an OpenAI-compatible chat completion provider.
type Config struct {
	APIKey string

	// BaseURL selects an OpenAI-compatible endpoint such as Cerebras.
	// Empty means the OpenAI API.
	BaseURL string

	Model string
}

// OpenAILLM implements llm.LLM on the chat completions API.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewLLM creates a provider from config.
func NewLLM(config Config) (*OpenAILLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	cc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}

	return &OpenAILLM{
		client: openai.NewClientWithConfig(cc),
		model:  config.Model,
	}, nil
}

// Chat performs a single chat completion.
func (o *OpenAILLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return llm.ChatResponse{}, classify(fmt.Errorf("chat completion request failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, llm.ErrNoChoices
	}

	choice := resp.Choices[0]
	slog.Debug("Chat completion finished",
		slog.String("model", o.model),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)))

	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// classify marks rate limits, server errors and transport failures as
// recoverable. Other API errors are fatal; cancellation is passed through.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return ai.NewRecoverableError(err)
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return ai.NewRecoverableError(err)
	}
	return ai.NewFatalError(err)
}
