package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

// OpenAILLM implements the LLM interface using OpenAI chat completions.
type OpenAILLM struct {
	client *openai.Client
	model  string
	retry  ai.RetryConfig
	logger *slog.Logger
}

// NewLLM creates a chat-completion provider.
func NewLLM(cfg Config) *OpenAILLM {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAILLM{
		client: cfg.client(),
		model:  cfg.Model,
		retry:  cfg.Retry,
		logger: cfg.Logger.With(slog.String("provider", "openai"), slog.String("model", cfg.Model)),
	}
}

// Chat performs one chat completion, retrying recoverable failures.
func (o *OpenAILLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	completionReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toMessages(req.Messages),
		Tools:       toTools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	start := time.Now()
	o.logger.Debug("Starting chat completion",
		slog.Int("messages", len(req.Messages)),
		slog.Int("tools", len(req.Tools)))

	var resp openai.ChatCompletionResponse
	err := ai.Retry(ctx, o.retry, o.logger, "chat completion", func(ctx context.Context) error {
		var err error
		resp, err = o.client.CreateChatCompletion(ctx, completionReq)
		return classify(err, "chat completion")
	})
	if err != nil {
		return llm.ChatResponse{}, err
	}

	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, ai.NewFatalError(fmt.Errorf("no choices returned"), "chat completion")
	}

	choice := resp.Choices[0]
	result := llm.ChatResponse{
		Message: llm.Message{
			Role:      llm.RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: fromToolCalls(choice.Message.ToolCalls),
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}

	o.logger.Info("Chat completion finished",
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Int("tool_calls", len(result.Message.ToolCalls)),
		slog.String("finish_reason", result.FinishReason),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// Capabilities returns the OpenAI provider's capabilities
func (o *OpenAILLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsTools:     true,
		SupportsStreaming: false,
		MaxTokens:         128000,
		SupportedModels:   []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
	}
}

func toMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role != llm.RoleTool {
			m.Name = msg.Name
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out[i] = m
	}
	return out
}

func toTools(defs []llm.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(defs))
	for i, def := range defs {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return tools
}

func fromToolCalls(calls []openai.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = llm.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		}
	}
	return out
}
