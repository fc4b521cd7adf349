package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"shopstream/internal/domain"
)

const sendTimeout = 5 * time.Second

// connSink delivers client events over a single WebSocket connection.
// Writes are serialized; a write failure marks the connection dead so
// in-flight turns stop producing output for nobody.
type connSink struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	dead   atomic.Bool
	logger *slog.Logger
}

func newConnSink(ws *websocket.Conn, logger *slog.Logger) *connSink {
	return &connSink{ws: ws, logger: logger}
}

// Send implements domain.OutputSink.
func (s *connSink) Send(ctx context.Context, event domain.ClientEvent) error {
	if s.dead.Load() {
		return domain.ErrConnectionGone
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	s.mu.Lock()
	err := wsjson.Write(ctx, s.ws, event)
	s.mu.Unlock()

	if err != nil {
		s.dead.Store(true)
		s.logger.Debug("client send failed", "event_type", event.Type, "error", err)
		return domain.WrapOp("send event", domain.ErrConnectionGone)
	}
	return nil
}

// Alive implements domain.OutputSink.
func (s *connSink) Alive() bool { return !s.dead.Load() }

var _ domain.OutputSink = (*connSink)(nil)
