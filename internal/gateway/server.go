// Package gateway exposes the agent over HTTP and WebSocket.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/tools"
)

// ErrClientClosed is returned when sending on a closed client connection.
var ErrClientClosed = errors.New("client connection closed")

const (
	// turnTimeout bounds one whole turn, reasoning rounds included.
	turnTimeout = 5 * time.Minute

	// maxPayloadBytes caps inbound WebSocket frames.
	maxPayloadBytes = 4 * 1024 * 1024
)

// Server is the parley HTTP + WebSocket server. Each WebSocket connection
// carries a client identity in its URL path; turns are funneled through
// the coordinator, which serializes per identity.
type Server struct {
	cfg       config.ServerConfig
	agentName string
	coord     *agent.Coordinator
	tools     *tools.Registry
	hooks     *hooks.Manager
	log       *logging.Logger
	clients   *ClientRegistry

	startedAt  time.Time
	boundAddr  string
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server around a turn coordinator.
func New(cfg config.ServerConfig, agentName string, coord *agent.Coordinator, registry *tools.Registry, hm *hooks.Manager, log *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		agentName: agentName,
		coord:     coord,
		tools:     registry,
		hooks:     hm,
		log:       log.Sub("gateway"),
		clients:   NewClientRegistry(log.Sub("clients")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Client auth is out of scope; accept any origin like the
			// CLI and browser clients expect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := withMiddleware(mux, s.log)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// Enable TLS if configured
	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln = tls.NewListener(ln, tlsCfg)
		s.log.Info().Msg("TLS enabled")
	}

	s.startedAt = time.Now()
	s.boundAddr = ln.Addr().String()

	s.log.Info().
		Str("addr", s.boundAddr).
		Str("agent", s.agentName).
		Int("tools", len(s.tools.Names())).
		Msg("server listening")

	s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{
		"addr": s.boundAddr,
	})

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or empty string if not started.
// With a configured port of 0 this is the port the OS picked.
func (s *Server) Addr() string {
	return s.boundAddr
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayloadBytes)

	client := NewClient(conn, clientID, s.log.Sub("ws"))
	s.clients.Add(client)
	s.hooks.EmitAsync(context.Background(), hooks.EventClientConnected, map[string]any{
		"clientId": clientID,
		"connId":   client.ConnID,
	})

	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
		s.hooks.EmitAsync(context.Background(), hooks.EventClientClosed, map[string]any{
			"clientId": clientID,
			"connId":   client.ConnID,
		})
	}()

	s.readLoop(client)
}

// readLoop processes inbound frames until the connection drops. Bad input
// is answered with an error frame; the connection stays open.
func (s *Server) readLoop(client *Client) {
	for {
		_, raw, err := client.Socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("clientId", client.ID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("clientId", client.ID).Msg("read error")
			}
			return
		}

		s.log.Trace().Str("clientId", client.ID).Int("bytes", len(raw)).Msg("frame received")

		var req ChatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			client.SendError("invalid message format")
			continue
		}
		if req.Message == "" {
			client.SendError("message is required")
			continue
		}

		s.handleTurn(client, req.Message)
	}
}

// handleTurn runs one turn through the coordinator and sends the result.
func (s *Server) handleTurn(client *Client, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	s.hooks.EmitAsync(ctx, hooks.EventMessageReceived, map[string]any{
		"clientId": client.ID,
	})

	result, err := s.coord.Submit(ctx, client.ID, text)
	if err != nil {
		s.log.Warn().Err(err).Str("clientId", client.ID).Msg("turn aborted")
		client.SendError(err.Error())
		return
	}

	resp := NewChatResponse(result)
	s.hooks.EmitAsync(ctx, hooks.EventResponseSending, map[string]any{
		"clientId":    client.ID,
		"interactive": result.Interactive,
	})
	if err := client.Send(resp); err != nil {
		s.log.Warn().Err(err).Str("clientId", client.ID).Msg("failed to send response")
	}
}
