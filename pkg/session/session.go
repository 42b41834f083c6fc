// Package session holds per-thread conversation state in process memory.
//
// A Session is an append-only message sequence whose first message is the
// system instructions. Appends enforce the tool-call pairing rule: a tool
// result is accepted only for a call id issued by an earlier assistant
// message and not yet answered, and no new user or assistant message may be
// appended while calls are outstanding.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

var (
	// ErrSessionBusy is returned by Acquire while another turn owns the session.
	ErrSessionBusy = errors.New("session is busy")
	// ErrUnknownToolCall is returned for a tool result without a matching call.
	ErrUnknownToolCall = errors.New("tool result does not match any tool call")
	// ErrDuplicateToolResult is returned when a call id is answered twice.
	ErrDuplicateToolResult = errors.New("tool call already has a result")
	// ErrPendingToolCalls is returned when a message would skip outstanding calls.
	ErrPendingToolCalls = errors.New("tool calls are awaiting results")
	// ErrInvalidMessage is returned for messages that cannot be appended.
	ErrInvalidMessage = errors.New("invalid message")
)

// Session is the ordered message history of one conversation thread.
type Session struct {
	id   string
	turn sync.Mutex

	mu        sync.RWMutex
	messages  []llm.Message
	calls     map[string]bool // call id -> answered
	pending   int
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// New creates a session seeded with the system instructions.
func New(id, systemPrompt string) *Session {
	return newSession(id, systemPrompt, time.Now)
}

func newSession(id, systemPrompt string, now func() time.Time) *Session {
	ts := now()
	return &Session{
		id:        id,
		messages:  []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}},
		calls:     make(map[string]bool),
		createdAt: ts,
		updatedAt: ts,
		now:       now,
	}
}

// ID returns the thread id.
func (s *Session) ID() string {
	return s.id
}

// Acquire claims the session for one turn. It fails fast with
// ErrSessionBusy instead of queueing behind another turn.
func (s *Session) Acquire() (release func(), err error) {
	if !s.turn.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, s.id)
	}
	var once sync.Once
	return func() { once.Do(s.turn.Unlock) }, nil
}

// AppendUser appends a user utterance.
func (s *Session) AppendUser(text string) error {
	return s.Append(llm.Message{Role: llm.RoleUser, Content: text})
}

// Append appends a user or assistant message. Tool results go through
// AppendToolResult and the system message is fixed at creation.
func (s *Session) Append(msg llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Role {
	case llm.RoleUser:
		if len(msg.ToolCalls) > 0 {
			return fmt.Errorf("%w: user message with tool calls", ErrInvalidMessage)
		}
	case llm.RoleAssistant:
	case llm.RoleTool:
		return fmt.Errorf("%w: use AppendToolResult for tool messages", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: role %q cannot be appended", ErrInvalidMessage, msg.Role)
	}

	if s.pending > 0 {
		return fmt.Errorf("%w: %d outstanding", ErrPendingToolCalls, s.pending)
	}

	for i, call := range msg.ToolCalls {
		if call.ID == "" {
			return fmt.Errorf("%w: tool call %d has no id", ErrInvalidMessage, i)
		}
		if _, seen := s.calls[call.ID]; seen {
			return fmt.Errorf("%w: duplicate tool call id %s", ErrInvalidMessage, call.ID)
		}
		for _, other := range msg.ToolCalls[:i] {
			if other.ID == call.ID {
				return fmt.Errorf("%w: duplicate tool call id %s", ErrInvalidMessage, call.ID)
			}
		}
	}

	msg.ToolCalls = append([]llm.ToolCall(nil), msg.ToolCalls...)
	for _, call := range msg.ToolCalls {
		s.calls[call.ID] = false
		s.pending++
	}

	s.messages = append(s.messages, msg)
	s.updatedAt = s.now()
	return nil
}

// AppendToolResult appends the result of an outstanding tool call.
func (s *Session) AppendToolResult(callID, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answered, ok := s.calls[callID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToolCall, callID)
	}
	if answered {
		return fmt.Errorf("%w: %s", ErrDuplicateToolResult, callID)
	}

	s.calls[callID] = true
	s.pending--
	s.messages = append(s.messages, llm.Message{
		Role:       llm.RoleTool,
		Name:       name,
		Content:    content,
		ToolCallID: callID,
	})
	s.updatedAt = s.now()
	return nil
}

// PendingToolCalls returns the ids of calls still awaiting a result, in
// the order they were issued.
func (s *Session) PendingToolCalls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pending == 0 {
		return nil
	}
	var ids []string
	for _, msg := range s.messages {
		for _, call := range msg.ToolCalls {
			if !s.calls[call.ID] {
				ids = append(ids, call.ID)
			}
		}
	}
	return ids
}

// Messages returns a copy of the history.
func (s *Session) Messages() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	for i := range out {
		if len(out[i].ToolCalls) > 0 {
			out[i].ToolCalls = append([]llm.ToolCall(nil), out[i].ToolCalls...)
		}
	}
	return out
}

// Len returns the number of messages, including the system message.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message.
func (s *Session) Last() llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages[len(s.messages)-1]
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// UpdatedAt returns when the last message was appended.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
