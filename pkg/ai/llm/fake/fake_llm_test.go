package fake

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

func userRequest(text string) llm.ChatRequest {
	return llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: text}}}
}

func TestFakeLLMReplies(t *testing.T) {
	is := is.New(t)
	f := NewFakeLLM("one", "two")
	ctx := context.Background()

	resp, err := f.Chat(ctx, userRequest("hi"))
	is.NoErr(err)
	is.Equal(resp.Message.Role, llm.RoleAssistant)
	is.Equal(resp.Message.Content, "one (You said: hi)")
	is.True(!resp.HasToolCalls())

	resp, err = f.Chat(ctx, llm.ChatRequest{})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "two")

	resp, err = f.Chat(ctx, llm.ChatRequest{})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "one") // cycles
	is.Equal(f.CallCount(), 3)
}

func TestScriptedLLM(t *testing.T) {
	is := is.New(t)
	f := NewScriptedLLM(
		Call("music_playback_tool", `{"filename":"giter.wav"}`, "other", `{}`),
		Reply("done"),
	)
	ctx := context.Background()

	resp, err := f.Chat(ctx, userRequest("play"))
	is.NoErr(err)
	is.True(resp.HasToolCalls())
	is.Equal(len(resp.Message.ToolCalls), 2)
	is.Equal(resp.Message.ToolCalls[0].Name, "music_playback_tool")
	is.True(strings.HasPrefix(resp.Message.ToolCalls[0].ID, "call_"))
	is.True(resp.Message.ToolCalls[0].ID != resp.Message.ToolCalls[1].ID) // unique ids

	resp, err = f.Chat(ctx, userRequest("play"))
	is.NoErr(err)
	is.Equal(resp.Message.Content, "done")
	is.Equal(f.Remaining(), 0)
	is.Equal(len(f.Requests()), 2)
}

func TestFakeLLMErrors(t *testing.T) {
	is := is.New(t)

	f := NewFakeLLM()
	f.Err = errors.New("boom")
	_, err := f.Chat(context.Background(), llm.ChatRequest{})
	is.Equal(err.Error(), "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFakeLLM().Chat(ctx, llm.ChatRequest{})
	is.True(errors.Is(err, context.Canceled))
}

func TestRequestsAreCopied(t *testing.T) {
	is := is.New(t)
	f := NewFakeLLM()

	req := userRequest("a")
	_, err := f.Chat(context.Background(), req)
	is.NoErr(err)

	req.Messages[0].Content = "mutated"
	is.Equal(f.Requests()[0].Messages[0].Content, "a")
}
