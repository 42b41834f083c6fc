package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
)

// classify marks err as recoverable or fatal. Rate limits, server errors
// and network failures are recoverable. Context errors pass through
// unchanged so callers can tell a deadline from a provider failure.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err, op)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err, op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ai.NewRecoverableError(err, op)
	}
	return ai.NewFatalError(err, op)
}

func classifyStatus(status int, err error, op string) error {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return ai.NewRecoverableError(err, op)
	default:
		return ai.NewFatalError(err, op)
	}
}
