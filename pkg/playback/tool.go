package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/agent"
	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

// ToolName is the name the model uses to call the playback tool.
const ToolName = "music_playback_tool"

// AgentTool exposes a playback Tool to the agent loop.
type AgentTool struct {
	tool *Tool
}

// NewAgentTool wraps t for registration in an agent.Registry.
func NewAgentTool(t *Tool) *AgentTool {
	return &AgentTool{tool: t}
}

// Definition describes the playback arguments to the model.
func (a *AgentTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolName,
		Description: "Plays the given range of a track's WAV file, then waits a little before returning.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "Filename of the track to play, as listed in the catalog.",
				},
				"start_time_ms": map[string]any{
					"type":        "integer",
					"description": "Playback start position in milliseconds.",
					"default":     DefaultStartMS,
				},
				"end_time_ms": map[string]any{
					"type":        "integer",
					"description": "Playback end position in milliseconds.",
					"default":     DefaultEndMS,
				},
				"sleep_time_ms": map[string]any{
					"type":        "integer",
					"description": "Time to wait after playback before the next track, in milliseconds.",
					"default":     DefaultWaitMS,
				},
			},
			"required": []string{"filename"},
		},
	}
}

// args mirrors Request with optional fields. Numbers are decoded as floats
// since models sometimes send 60000.0 for an integer.
type args struct {
	Filename string   `json:"filename"`
	StartMS  *float64 `json:"start_time_ms"`
	EndMS    *float64 `json:"end_time_ms"`
	WaitMS   *float64 `json:"sleep_time_ms"`
}

// ParseRequest decodes tool arguments, applying defaults for omitted fields.
func ParseRequest(raw json.RawMessage) (Request, error) {
	var a args
	if err := json.Unmarshal(raw, &a); err != nil {
		return Request{}, fmt.Errorf("%w: %v", agent.ErrInvalidArguments, err)
	}
	req := Request{
		Filename: a.Filename,
		StartMS:  orDefault(a.StartMS, DefaultStartMS),
		EndMS:    orDefault(a.EndMS, DefaultEndMS),
		WaitMS:   orDefault(a.WaitMS, DefaultWaitMS),
	}
	if req.Filename == "" {
		return req, fmt.Errorf("%w: filename is required", agent.ErrInvalidArguments)
	}
	return req, nil
}

// orDefault rounds v to whole milliseconds, clamped to what a
// time.Duration can represent.
func orDefault(v *float64, def int64) int64 {
	if v == nil {
		return def
	}
	switch r := math.Round(*v); {
	case r >= float64(MaxMS):
		return MaxMS
	case r <= -float64(MaxMS):
		return -MaxMS
	default:
		return int64(r)
	}
}

// Budget returns the time the requested clip and wait may take.
func (a *AgentTool) Budget(raw json.RawMessage) time.Duration {
	req, err := ParseRequest(raw)
	if err != nil {
		return 0
	}
	return Budget(req)
}

// Call plays the requested clip. A playback that runs past its deadline
// returns the result text together with an agent.TimeoutError.
func (a *AgentTool) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return "", err
	}

	res := a.tool.Play(ctx, req)
	if res.Status == StatusTimeout {
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		return res.String(), &agent.TimeoutError{Op: ToolName, Err: cause}
	}
	return res.String(), nil
}
