package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
	"github.com/chriscow/ambient-agents-go/pkg/ai/tts"
)

const toolCallResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "music_playback_tool", "arguments": "{\"filename\":\"giter.wav\"}"}
      }]
    },
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

const textResponse = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "Enjoy."}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
}`

func testConfig(url string) Config {
	return Config{
		APIKey:  "test-key",
		BaseURL: url + "/v1",
		Retry: ai.RetryConfig{
			MaxRetries:    2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	}
}

func TestChatToolCalls(t *testing.T) {
	is := is.New(t)

	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/v1/chat/completions")
		is.Equal(r.Header.Get("Authorization"), "Bearer test-key")
		is.NoErr(json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(toolCallResponse))
	}))
	defer srv.Close()

	provider := NewLLM(testConfig(srv.URL))
	resp, err := provider.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a music assistant."},
			{Role: llm.RoleUser, Content: "play something"},
		},
		Tools: []llm.ToolDefinition{{
			Name:       "music_playback_tool",
			Parameters: map[string]any{"type": "object"},
		}},
	})
	is.NoErr(err)

	is.True(resp.HasToolCalls())
	is.Equal(resp.Message.ToolCalls[0], llm.ToolCall{ID: "call_1", Name: "music_playback_tool", Arguments: `{"filename":"giter.wav"}`})
	is.Equal(resp.TokensUsed, 15)
	is.Equal(resp.FinishReason, "tool_calls")

	is.Equal(got.Model, DefaultChatModel)
	is.Equal(len(got.Messages), 2)
	is.Equal(len(got.Tools), 1)
	is.Equal(got.Tools[0].Function.Name, "music_playback_tool")
}

func TestChatSendsToolResults(t *testing.T) {
	is := is.New(t)

	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.NoErr(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(textResponse))
	}))
	defer srv.Close()

	resp, err := NewLLM(testConfig(srv.URL)).Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "play"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "music_playback_tool", Arguments: "{}"}}},
			{Role: llm.RoleTool, Name: "music_playback_tool", ToolCallID: "call_1", Content: "Played track giter.wav"},
		},
	})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "Enjoy.")
	is.True(!resp.HasToolCalls())

	is.Equal(got.Messages[1].ToolCalls[0].ID, "call_1")
	is.Equal(got.Messages[1].ToolCalls[0].Function.Name, "music_playback_tool")
	is.Equal(got.Messages[2].ToolCallID, "call_1")
	is.Equal(got.Messages[2].Role, "tool")
	is.Equal(len(got.Tools), 0) // no tools offered
}

func TestChatRetriesServerErrors(t *testing.T) {
	is := is.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Write([]byte(textResponse))
	}))
	defer srv.Close()

	resp, err := NewLLM(testConfig(srv.URL)).Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "Enjoy.")
	is.Equal(calls.Load(), int32(3)) // two failures then success
}

func TestChatFatalErrorNotRetried(t *testing.T) {
	is := is.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewLLM(testConfig(srv.URL)).Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	is.True(ai.IsFatal(err))
	is.Equal(calls.Load(), int32(1))
}

func TestChatRetriesExhausted(t *testing.T) {
	is := is.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewLLM(testConfig(srv.URL)).Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	is.True(ai.IsRecoverable(err))
	is.Equal(calls.Load(), int32(3)) // first attempt plus two retries
}

func TestChatContextDeadline(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewLLM(testConfig(srv.URL)).Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	is.True(errors.Is(err, context.DeadlineExceeded))
	is.True(!ai.IsRecoverable(err)) // deadlines are left to the caller
}

func TestSynthesize(t *testing.T) {
	is := is.New(t)

	var got openai.CreateSpeechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/v1/audio/speech")
		is.NoErr(json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/pcm")
		w.Write(make([]byte, 4801)) // 2400 samples and a stray byte
	}))
	defer srv.Close()

	provider := NewTTS(testConfig(srv.URL))
	buf, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "Now playing giter."})
	is.NoErr(err)

	is.Equal(buf.SampleRate, 24000)
	is.Equal(buf.NumChannels, 1)
	is.Equal(len(buf.Data), 4800)
	is.Equal(buf.Duration(), 100*time.Millisecond)

	is.Equal(string(got.ResponseFormat), "pcm")
	is.Equal(string(got.Voice), DefaultVoice)
	is.Equal(got.Input, "Now playing giter.")
}

func TestClassify(t *testing.T) {
	is := is.New(t)

	is.Equal(classify(nil, "op"), nil)
	is.True(ai.IsRecoverable(classify(&openai.APIError{HTTPStatusCode: 500}, "op")))
	is.True(ai.IsRecoverable(classify(&openai.APIError{HTTPStatusCode: 429}, "op")))
	is.True(ai.IsFatal(classify(&openai.APIError{HTTPStatusCode: 400}, "op")))
	is.True(ai.IsRecoverable(classify(&openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, "op")))
	is.True(ai.IsFatal(classify(errors.New("unexpected"), "op")))

	err := classify(context.Canceled, "op")
	is.Equal(err, context.Canceled) // passed through untouched
}

func TestConfigFrom(t *testing.T) {
	is := is.New(t)
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "")

	c, err := configFrom(map[string]any{"model": "gpt-4o", "max_retries": 1}, DefaultChatModel)
	is.NoErr(err)
	is.Equal(c.APIKey, "env-key") // falls back to the environment
	is.Equal(c.Model, "gpt-4o")
	is.Equal(c.Retry.MaxRetries, 1)

	c, err = configFrom(map[string]any{"api_key": "cfg-key", "base_url": "http://localhost:8080/v1"}, DefaultSpeechModel)
	is.NoErr(err)
	is.Equal(c.APIKey, "cfg-key")
	is.Equal(c.BaseURL, "http://localhost:8080/v1")
	is.Equal(c.Model, DefaultSpeechModel)

	t.Setenv("OPENAI_API_KEY", "")
	_, err = configFrom(map[string]any{}, DefaultChatModel)
	is.True(err != nil)
}
