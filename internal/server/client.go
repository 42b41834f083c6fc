package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/ambient-agents-go/pkg/version"
)

// Client talks to a Server over websocket on one thread.
type Client struct {
	url    string
	thread string
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a client for serverURL (ws:// or wss://, with or
// without the /ws path). An empty thread lets the server assign one.
func NewClient(serverURL, thread string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    serverURL,
		thread: thread,
		logger: logger,
	}
}

// Thread returns the thread id, known after Connect.
func (c *Client) Thread() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thread
}

// Connect dials the server and waits for its ready message.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if c.thread != "" {
		q := u.Query()
		q.Set("thread", c.thread)
		u.RawQuery = q.Encode()
	}

	c.logger.Debug("Connecting to WebSocket", slog.String("url", u.String()))

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	var ready Envelope
	if err := conn.ReadJSON(&ready); err != nil {
		conn.Close()
		return fmt.Errorf("failed to read ready message: %w", err)
	}
	if ready.Type != TypeReady {
		conn.Close()
		return fmt.Errorf("unexpected first message %q", ready.Type)
	}

	c.mu.Lock()
	c.conn = conn
	if id, ok := ready.Data["thread"].(string); ok {
		c.thread = id
	}
	c.mu.Unlock()

	c.logger.Info("WebSocket connected", slog.String("url", u.String()), slog.String("thread", c.Thread()))
	return nil
}

// Send delivers one user message and waits for the reply. Turn failures
// come back as *RemoteError. If ctx ends before the reply arrives the
// connection is left unusable and must be closed.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return "", fmt.Errorf("not connected")
	}

	if err := c.conn.WriteJSON(textEnvelope(TypeUser, text)); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	// Unblock the read if ctx ends first.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return "", errors.Join(ctx.Err(), err)
			}
			return "", fmt.Errorf("failed to read reply: %w", err)
		}

		switch env.Type {
		case TypeAssistant:
			return env.text(), nil
		case TypeError:
			kind, _ := env.Data["kind"].(string)
			msg, _ := env.Data["error"].(string)
			return "", &RemoteError{Kind: kind, Message: msg}
		default:
			c.logger.Debug("Skipping message", slog.String("type", env.Type))
		}
	}
}

// Ping sends a keepalive the server answers with a pong.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(&Envelope{Type: TypePing})
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	c.logger.Info("Closing WebSocket connection")
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
