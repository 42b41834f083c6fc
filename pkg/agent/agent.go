// Package agent implements the conversational tool loop: the model is asked
// for a reply (Reasoning), any tool calls it makes are executed and their
// results appended (Acting), and the cycle repeats until the model answers
// in plain text or the round-trip limit is reached.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
	"github.com/chriscow/ambient-agents-go/pkg/session"
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxRoundTrips = 25
	DefaultModelTimeout  = 60 * time.Second
	DefaultToolTimeout   = 30 * time.Second
	DefaultToolGrace     = 10 * time.Second
)

// cancelledResult is recorded for calls skipped after a turn ends early.
const cancelledResult = "cancelled: the turn ended before this tool call ran"

// LoopState is the phase of the current turn.
type LoopState int32

const (
	StateIdle LoopState = iota
	StateReasoning
	StateActing
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReasoning:
		return "Reasoning"
	case StateActing:
		return "Acting"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Metrics holds loop counters. They are not published globally until
// Publish is called.
type Metrics struct {
	Turns            *expvar.Int
	RoundTrips       *expvar.Int
	ToolCalls        *expvar.Int
	ToolErrors       *expvar.Int
	LoopExceeded     *expvar.Int
	Timeouts         *expvar.Int
	ActiveTurns      *expvar.Int
	StateTransitions *expvar.Map
	all              *expvar.Map
}

func newLoopMetrics() *Metrics {
	m := &Metrics{
		Turns:            new(expvar.Int),
		RoundTrips:       new(expvar.Int),
		ToolCalls:        new(expvar.Int),
		ToolErrors:       new(expvar.Int),
		LoopExceeded:     new(expvar.Int),
		Timeouts:         new(expvar.Int),
		ActiveTurns:      new(expvar.Int),
		StateTransitions: new(expvar.Map).Init(),
		all:              new(expvar.Map).Init(),
	}
	m.all.Set("turns", m.Turns)
	m.all.Set("round_trips", m.RoundTrips)
	m.all.Set("tool_calls", m.ToolCalls)
	m.all.Set("tool_errors", m.ToolErrors)
	m.all.Set("loop_exceeded", m.LoopExceeded)
	m.all.Set("timeouts", m.Timeouts)
	m.all.Set("active_turns", m.ActiveTurns)
	m.all.Set("state_transitions", m.StateTransitions)
	return m
}

// Publish exposes the metrics under name on /debug/vars. It panics if the
// name is already in use.
func (m *Metrics) Publish(name string) {
	expvar.Publish(name, m.all)
}

// Config holds configuration for creating a Loop.
type Config struct {
	LLM   llm.LLM
	Tools *Registry

	// MaxRoundTrips bounds the tool-call responses handled in one turn.
	MaxRoundTrips int
	// ModelTimeout bounds each model call.
	ModelTimeout time.Duration
	// ToolTimeout bounds tools that do not implement Budgeted.
	ToolTimeout time.Duration
	// ToolGrace is added to the budget of Budgeted tools.
	ToolGrace time.Duration

	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger
}

// Reply is the outcome of a completed turn.
type Reply struct {
	Text       string
	RoundTrips int
	ToolCalls  int
}

// Loop drives turns against sessions. A Loop is safe for concurrent use
// across different sessions.
type Loop struct {
	llm           llm.LLM
	tools         *Registry
	maxRoundTrips int
	modelTimeout  time.Duration
	toolTimeout   time.Duration
	toolGrace     time.Duration
	temperature   float32
	maxTokens     int
	logger        *slog.Logger

	state   atomic.Int32
	metrics *Metrics
}

// New creates a Loop with the given configuration.
func New(cfg Config) (*Loop, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if cfg.Tools == nil {
		var err error
		if cfg.Tools, err = NewRegistry(); err != nil {
			return nil, err
		}
	}
	if cfg.MaxRoundTrips <= 0 {
		cfg.MaxRoundTrips = DefaultMaxRoundTrips
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.ToolGrace <= 0 {
		cfg.ToolGrace = DefaultToolGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loop{
		llm:           cfg.LLM,
		tools:         cfg.Tools,
		maxRoundTrips: cfg.MaxRoundTrips,
		modelTimeout:  cfg.ModelTimeout,
		toolTimeout:   cfg.ToolTimeout,
		toolGrace:     cfg.ToolGrace,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		logger:        cfg.Logger.With(slog.String("component", "agent")),
		metrics:       newLoopMetrics(),
	}, nil
}

// Metrics returns the loop counters.
func (l *Loop) Metrics() *Metrics {
	return l.metrics
}

// Tools returns the tool registry.
func (l *Loop) Tools() *Registry {
	return l.tools
}

// State returns the phase most recently entered by any turn. With several
// sessions running at once it is only a sample; use ActiveTurns and the
// per-turn transition counters for accounting.
func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

// turnState tracks the phase of a single turn. Transitions are counted
// from the turn's own previous phase, so concurrent turns never mix.
type turnState struct {
	loop    *Loop
	current LoopState
}

func (l *Loop) newTurnState() *turnState {
	l.metrics.ActiveTurns.Add(1)
	return &turnState{loop: l, current: StateIdle}
}

func (ts *turnState) set(next LoopState) {
	if ts.current == next {
		return
	}
	ts.loop.metrics.StateTransitions.Add(fmt.Sprintf("%s_to_%s", ts.current, next), 1)
	ts.current = next
	ts.loop.state.Store(int32(next))
}

// done returns the turn to Idle.
func (ts *turnState) done() {
	ts.set(StateIdle)
	ts.loop.metrics.ActiveTurns.Add(-1)
}

// Run appends input to sess and advances the conversation until the model
// replies in plain text. It fails with session.ErrSessionBusy if another
// turn owns sess, ErrLoopExceeded when the model keeps calling tools past
// the limit and ErrTimeout when a model or tool call runs out of time.
func (l *Loop) Run(ctx context.Context, sess *session.Session, input string) (Reply, error) {
	release, err := sess.Acquire()
	if err != nil {
		return Reply{}, err
	}
	defer release()
	state := l.newTurnState()
	defer state.done()

	if err := sess.AppendUser(input); err != nil {
		return Reply{}, fmt.Errorf("append user message: %w", err)
	}
	l.metrics.Turns.Add(1)

	logger := l.logger.With(slog.String("thread", sess.ID()))
	logger.Info("Turn started", slog.Int("history", sess.Len()))

	var reply Reply
	for {
		state.set(StateReasoning)
		resp, err := l.reason(ctx, sess)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				l.metrics.Timeouts.Add(1)
			}
			logger.Error("Model call failed", slog.String("error", err.Error()))
			return reply, err
		}

		if !resp.HasToolCalls() {
			msg := llm.Message{Role: llm.RoleAssistant, Content: resp.Message.Content}
			if err := sess.Append(msg); err != nil {
				return reply, fmt.Errorf("append reply: %w", err)
			}
			reply.Text = msg.Content
			logger.Info("Turn finished",
				slog.Int("round_trips", reply.RoundTrips),
				slog.Int("tool_calls", reply.ToolCalls))
			return reply, nil
		}

		if reply.RoundTrips >= l.maxRoundTrips {
			l.metrics.LoopExceeded.Add(1)
			logger.Warn("Round-trip limit reached",
				slog.Int("limit", l.maxRoundTrips),
				slog.Int("tool_calls", reply.ToolCalls))
			return reply, fmt.Errorf("%w: %d tool round trips without a reply", ErrLoopExceeded, l.maxRoundTrips)
		}
		reply.RoundTrips++
		l.metrics.RoundTrips.Add(1)

		msg := resp.Message
		msg.Role = llm.RoleAssistant
		msg.ToolCalls = withCallIDs(msg.ToolCalls)
		if err := sess.Append(msg); err != nil {
			return reply, fmt.Errorf("append tool calls: %w", err)
		}

		state.set(StateActing)
		n, err := l.act(ctx, sess, msg.ToolCalls, logger)
		reply.ToolCalls += n
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				l.metrics.Timeouts.Add(1)
			}
			logger.Error("Tool call ended the turn", slog.String("error", err.Error()))
			return reply, err
		}
	}
}

// reason sends the history and tool definitions to the model.
func (l *Loop) reason(ctx context.Context, sess *session.Session) (llm.ChatResponse, error) {
	mctx, cancel := context.WithTimeout(ctx, l.modelTimeout)
	defer cancel()

	resp, err := l.llm.Chat(mctx, llm.ChatRequest{
		Messages:    sess.Messages(),
		Tools:       l.tools.Definitions(),
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(mctx.Err(), context.DeadlineExceeded) {
			return resp, &TimeoutError{Op: "model call", Err: err}
		}
		return resp, fmt.Errorf("model call: %w", err)
	}
	return resp, nil
}

// act runs calls in order and appends one result per call. If the turn
// ends early the remaining calls receive a cancelled result so every call
// stays answered. It returns the number of tools invoked.
func (l *Loop) act(ctx context.Context, sess *session.Session, calls []llm.ToolCall, logger *slog.Logger) (int, error) {
	invoked := 0
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			l.cancelRemaining(sess, calls[i:], logger)
			return invoked, fmt.Errorf("turn cancelled: %w", err)
		}

		content, err := l.invoke(ctx, call, logger)
		invoked++
		l.metrics.ToolCalls.Add(1)

		if err != nil && isTerminal(err) {
			if content == "" {
				content = fmt.Sprintf("Error: %s did not finish: %v", call.Name, err)
			}
			if appendErr := sess.AppendToolResult(call.ID, call.Name, content); appendErr != nil {
				return invoked, fmt.Errorf("append tool result: %w", appendErr)
			}
			l.cancelRemaining(sess, calls[i+1:], logger)
			if ctx.Err() != nil {
				return invoked, fmt.Errorf("turn cancelled: %w", ctx.Err())
			}
			var te *TimeoutError
			if errors.As(err, &te) {
				return invoked, err
			}
			return invoked, &TimeoutError{Op: call.Name, Err: err}
		}

		if err != nil {
			l.metrics.ToolErrors.Add(1)
			if content == "" {
				content = fmt.Sprintf("Error: %v", err)
			}
		}

		if err := sess.AppendToolResult(call.ID, call.Name, content); err != nil {
			return invoked, fmt.Errorf("append tool result: %w", err)
		}
	}
	return invoked, nil
}

// invoke dispatches one call under its deadline.
func (l *Loop) invoke(ctx context.Context, call llm.ToolCall, logger *slog.Logger) (string, error) {
	tool, ok := l.tools.Get(call.Name)
	if !ok {
		logger.Warn("Model called unknown tool", slog.String("tool", call.Name))
		return fmt.Sprintf("Error: unknown tool %q. Available tools: %v", call.Name, l.tools.Names()), nil
	}

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		return "", fmt.Errorf("%w: arguments are not valid JSON", ErrInvalidArguments)
	}

	timeout := l.toolTimeout
	if b, ok := tool.(Budgeted); ok {
		timeout = b.Budget(args) + l.toolGrace
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	logger.Info("Calling tool",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.Duration("timeout", timeout))

	content, err := tool.Call(tctx, args)

	attrs := []any{
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		logger.Warn("Tool returned error", append(attrs, slog.String("error", err.Error()))...)
	} else {
		logger.Info("Tool finished", attrs...)
	}
	return content, err
}

func (l *Loop) cancelRemaining(sess *session.Session, calls []llm.ToolCall, logger *slog.Logger) {
	for _, call := range calls {
		if err := sess.AppendToolResult(call.ID, call.Name, cancelledResult); err != nil {
			logger.Error("Failed to record cancelled tool call",
				slog.String("call_id", call.ID),
				slog.String("error", err.Error()))
		}
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// withCallIDs fills in ids for calls the provider left unnamed.
func withCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}
