// Package server exposes the agent loop over websocket so remote clients
// can chat with a shared music host.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chriscow/ambient-agents-go/pkg/agent"
	"github.com/chriscow/ambient-agents-go/pkg/session"
	"github.com/chriscow/ambient-agents-go/pkg/version"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	queueSize       = 16
)

// Metrics holds server counters. They are not published globally until
// Publish is called.
type Metrics struct {
	Connections *expvar.Int
	Active      *expvar.Int
	Messages    *expvar.Int
	Errors      *expvar.Int
	all         *expvar.Map
}

func newServerMetrics() *Metrics {
	m := &Metrics{
		Connections: new(expvar.Int),
		Active:      new(expvar.Int),
		Messages:    new(expvar.Int),
		Errors:      new(expvar.Int),
		all:         new(expvar.Map).Init(),
	}
	m.all.Set("connections", m.Connections)
	m.all.Set("active", m.Active)
	m.all.Set("messages", m.Messages)
	m.all.Set("errors", m.Errors)
	return m
}

// Publish exposes the metrics under name on /debug/vars.
func (m *Metrics) Publish(name string) {
	expvar.Publish(name, m.all)
}

// Config holds configuration for creating a Server.
type Config struct {
	Loop  *agent.Loop
	Store *session.Store
	// SessionIdle drops threads unused for this long. Zero keeps them.
	SessionIdle time.Duration
	Logger      *slog.Logger
}

// Server serves /ws, /healthz, /version and /debug/vars.
type Server struct {
	loop     *agent.Loop
	store    *session.Store
	idle     time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader
	metrics  *Metrics
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Loop == nil {
		return nil, fmt.Errorf("agent loop is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		loop:    cfg.Loop,
		store:   cfg.Store,
		idle:    cfg.SessionIdle,
		logger:  cfg.Logger.With(slog.String("component", "server")),
		metrics: newServerMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}, nil
}

// Metrics returns the server counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.Get())
	})
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

// ListenAndServe serves on addr until ctx is done, pruning idle sessions
// in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.idle > 0 {
		go s.pruneLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) pruneLoop(ctx context.Context) {
	interval := s.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.PruneIdle(s.idle); n > 0 {
				s.logger.Info("Pruned idle sessions", slog.Int("count", n), slog.Int("remaining", s.store.Len()))
			}
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	thread := r.URL.Query().Get("thread")
	if thread == "" {
		thread = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sess, created, detach := s.store.Attach(thread)
	defer detach()
	s.metrics.Connections.Add(1)
	s.metrics.Active.Add(1)
	defer s.metrics.Active.Add(-1)

	logger := s.logger.With(slog.String("thread", thread), slog.String("remote", r.RemoteAddr))
	logger.Info("Client connected", slog.Bool("new_thread", created))

	c := &connection{
		conn:   conn,
		sess:   sess,
		loop:   s.loop,
		logger: logger,
		in:     make(chan *Envelope, queueSize),
		out:    make(chan *Envelope, queueSize),
		m:      s.metrics,
	}
	c.run(r.Context())
	logger.Info("Client disconnected")
}

// connection runs a reader, a writer and a turn processor for one client,
// the same split the worker used for its control channel.
type connection struct {
	conn   *websocket.Conn
	sess   *session.Session
	loop   *agent.Loop
	logger *slog.Logger
	in     chan *Envelope
	out    chan *Envelope
	m      *Metrics
}

func (c *connection) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.conn.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer c.conn.Close()
		defer cancel()
		c.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		c.processLoop(ctx)
	}()

	c.send(ctx, &Envelope{Type: TypeReady, Data: map[string]any{"thread": c.sess.ID()}})

	err := c.readLoop(ctx)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Debug("Read loop ended", slog.String("error", err.Error()))
	}
	cancel()
	// Unblock a writer stuck on a dead peer.
	c.conn.Close()
	wg.Wait()
}

func (c *connection) readLoop(ctx context.Context) error {
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return err
		}
		c.logger.Debug("Received message", slog.String("type", env.Type))

		switch env.Type {
		case TypePing:
			c.send(ctx, &Envelope{Type: TypePong, Data: env.Data})
		case TypeUser:
			select {
			case c.in <- &env:
			case <-ctx.Done():
				return nil
			}
		default:
			c.send(ctx, errorEnvelope(KindBadRequest, fmt.Errorf("unknown message type %q", env.Type)))
		}
	}
}

func (c *connection) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.in:
			c.m.Messages.Add(1)
			text := env.text()
			if text == "" {
				c.send(ctx, errorEnvelope(KindBadRequest, fmt.Errorf("empty message")))
				continue
			}

			reply, err := c.loop.Run(ctx, c.sess, text)
			if err != nil {
				c.m.Errors.Add(1)
				c.logger.Warn("Turn failed", slog.String("error", err.Error()))
				c.send(ctx, errorEnvelope(errorKind(err), err))
				continue
			}
			c.send(ctx, textEnvelope(TypeAssistant, reply.Text))
		}
	}
}

func (c *connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug("Write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (c *connection) send(ctx context.Context, env *Envelope) {
	select {
	case c.out <- env:
	case <-ctx.Done():
	}
}
