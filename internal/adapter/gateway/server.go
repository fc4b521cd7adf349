package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"shopstream/internal/domain"
	"shopstream/internal/infra/config"
)

const defaultMsgPerMinute = 60

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	id      string
	info    *ClientInfo
	ws      *websocket.Conn
	sink    *connSink
	limiter *rate.Limiter
}

// Server is the WebSocket gateway. Each connection carries one conversation:
// inbound frames are processed strictly in order, one turn at a time, with
// all output for the turn streamed through the connection's sink before the
// next frame is read.
type Server struct {
	handler   domain.TurnHandler
	auth      Authenticator
	logger    *slog.Logger
	addr      string
	perMinute int

	clients   sync.Map // connID (string) -> *clientConn
	httpSrv   *http.Server
	boundAddr string
	mu        sync.Mutex
}

// NewServer creates a gateway server.
func NewServer(handler domain.TurnHandler, auth Authenticator, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	perMinute := cfg.MsgPerMinute
	if perMinute <= 0 {
		perMinute = defaultMsgPerMinute
	}
	return &Server{
		handler:   handler,
		auth:      auth,
		logger:    logger,
		addr:      cfg.Addr,
		perMinute: perMinute,
	}
}

// Start begins accepting WebSocket connections. Blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	s.mu.Lock()
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{Handler: mux}
	httpSrv := s.httpSrv
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", s.BoundAddr())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	s.mu.Lock()
	httpSrv := s.httpSrv
	s.mu.Unlock()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after
// Start.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	clientInfo, err := s.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := ulid.Make().String()
	cc := &clientConn{
		id:      connID,
		info:    clientInfo,
		ws:      ws,
		sink:    newConnSink(ws, s.logger),
		limiter: rate.NewLimiter(rate.Limit(float64(s.perMinute)/60.0), s.perMinute),
	}
	s.clients.Store(connID, cc)

	s.logger.Info("client connected", "conn_id", connID, "client", clientInfo.Name)

	s.readLoop(r.Context(), cc)

	s.clients.Delete(connID)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("client disconnected", "conn_id", connID)
}

// readLoop consumes inbound frames and runs one turn per frame. Turns run
// sequentially on purpose: the client protocol has no turn multiplexing, so
// interleaved output from concurrent turns would be unparseable.
func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}

		if !cc.limiter.Allow() {
			s.logger.Warn("inbound rate limit exceeded", "conn_id", cc.id)
			cc.sink.Send(ctx, domain.ClientEvent{
				Type:    domain.EventError,
				Message: "Rate limit exceeded. Please slow down.",
			})
			continue
		}

		req, err := frame.turnRequest(cc.id)
		if err != nil {
			s.logger.Warn("rejected inbound frame", "conn_id", cc.id, "error", err)
			cc.sink.Send(ctx, domain.ClientEvent{
				Type:    domain.EventError,
				Message: "Invalid request: " + err.Error(),
			})
			continue
		}

		if err := s.handler.HandleTurn(ctx, cc.sink, req); err != nil {
			// The handler already surfaced a client-facing error event.
			s.logger.Error("turn failed",
				"conn_id", cc.id,
				"session_id", req.SessionID,
				"user_id", req.UserID,
				"error", err,
			)
		}

		if !cc.sink.Alive() {
			return
		}
	}
}
