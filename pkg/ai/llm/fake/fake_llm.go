// Package fake provides a scripted llm.LLM for tests and offline demos.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

// FakeLLM replays a script of responses. Once the script is exhausted it
// cycles through plain text replies.
type FakeLLM struct {
	mu        sync.Mutex
	script    []llm.ChatResponse
	replies   []string
	requests  []llm.ChatRequest
	callCount int

	// Err, when set, is returned from every Chat call.
	Err error
}

// NewFakeLLM creates a new fake LLM provider with predefined plain replies.
func NewFakeLLM(replies ...string) *FakeLLM {
	if len(replies) == 0 {
		replies = []string{
			"This is a fake response from the fake LLM provider.",
			"I'm a fake music assistant. What would you like to hear?",
		}
	}
	return &FakeLLM{replies: replies}
}

// NewScriptedLLM creates a fake that returns steps in order.
func NewScriptedLLM(steps ...llm.ChatResponse) *FakeLLM {
	f := NewFakeLLM()
	f.script = steps
	return f
}

// Reply builds a plain assistant reply step.
func Reply(text string) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		FinishReason: "stop",
	}
}

// Call builds a step that asks for one or more tool calls. Each pair of
// arguments is a tool name followed by its JSON arguments.
func Call(nameArgs ...string) llm.ChatResponse {
	if len(nameArgs)%2 != 0 {
		panic("fake.Call needs name/arguments pairs")
	}
	msg := llm.Message{Role: llm.RoleAssistant}
	for i := 0; i < len(nameArgs); i += 2 {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      nameArgs[i],
			Arguments: nameArgs[i+1],
		})
	}
	return llm.ChatResponse{Message: msg, FinishReason: "tool_calls"}
}

// Chat returns the next scripted step, or a plain reply once the script
// is exhausted.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, copyRequest(req))
	f.callCount++

	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}
	if f.Err != nil {
		return llm.ChatResponse{}, f.Err
	}

	if len(f.script) > 0 {
		step := f.script[0]
		f.script = f.script[1:]
		return step, nil
	}

	response := f.replies[(f.callCount-1)%len(f.replies)]
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == llm.RoleUser {
		response = fmt.Sprintf("%s (You said: %s)", response, req.Messages[n-1].Content)
	}

	resp := Reply(response)
	resp.TokensUsed = len(strings.Fields(response)) + 10
	return resp, nil
}

// Requests returns a copy of every request received.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.requests...)
}

// CallCount returns the number of Chat calls.
func (f *FakeLLM) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// Remaining returns the number of unused scripted steps.
func (f *FakeLLM) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.script)
}

// Capabilities returns the fake LLM capabilities.
func (f *FakeLLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsTools:     true,
		SupportsStreaming: false,
		MaxTokens:         4096,
		SupportedModels:   []string{"fake-model-1"},
	}
}

func copyRequest(req llm.ChatRequest) llm.ChatRequest {
	req.Messages = append([]llm.Message(nil), req.Messages...)
	req.Tools = append([]llm.ToolDefinition(nil), req.Tools...)
	return req
}
