package server

import (
	"errors"
	"fmt"

	"github.com/chriscow/ambient-agents-go/pkg/agent"
	"github.com/chriscow/ambient-agents-go/pkg/session"
)

// Envelope types
const (
	TypeUser      = "user"
	TypeAssistant = "assistant"
	TypeError     = "error"
	TypeReady     = "ready"
	TypePing      = "ping"
	TypePong      = "pong"
)

// Error kinds carried in error envelopes.
const (
	KindLoopExceeded = "loop_exceeded"
	KindTimeout      = "timeout"
	KindBusy         = "busy"
	KindBadRequest   = "bad_request"
	KindInternal     = "error"
)

// Envelope is one websocket message in either direction.
type Envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func (e *Envelope) text() string {
	s, _ := e.Data["text"].(string)
	return s
}

func textEnvelope(typ, text string) *Envelope {
	return &Envelope{Type: typ, Data: map[string]any{"text": text}}
}

func errorEnvelope(kind string, err error) *Envelope {
	return &Envelope{Type: TypeError, Data: map[string]any{"kind": kind, "error": err.Error()}}
}

// errorKind maps turn errors onto wire kinds.
func errorKind(err error) string {
	switch {
	case errors.Is(err, agent.ErrLoopExceeded):
		return KindLoopExceeded
	case errors.Is(err, agent.ErrTimeout):
		return KindTimeout
	case errors.Is(err, session.ErrSessionBusy):
		return KindBusy
	default:
		return KindInternal
	}
}

// RemoteError is a turn failure reported by the server. It matches the
// local sentinel for its kind, so callers can use errors.Is on either side
// of the connection.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server: %s", e.Message)
}

func (e *RemoteError) Unwrap() error {
	switch e.Kind {
	case KindLoopExceeded:
		return agent.ErrLoopExceeded
	case KindTimeout:
		return agent.ErrTimeout
	case KindBusy:
		return session.ErrSessionBusy
	default:
		return nil
	}
}
