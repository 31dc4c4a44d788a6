// internal/gateway/transport.go
package gateway

import (
	"context"

	"github.com/coder/websocket"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "uno"

// Transport is one player's bidirectional message stream. Each Read or Write
// carries exactly one JSON message. Close unblocks a pending Read.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, msg []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// WebSocketTransport adapts a coder/websocket connection. Only text frames
// are delivered; binary frames are skipped.
type WebSocketTransport struct {
	conn *websocket.Conn
}

func NewWebSocketTransport(conn *websocket.Conn, readLimit int64) *WebSocketTransport {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &WebSocketTransport{conn: conn}
}

func (t *WebSocketTransport) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, msg, err := t.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return msg, nil
		}
	}
}

func (t *WebSocketTransport) Write(ctx context.Context, msg []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, msg)
}

func (t *WebSocketTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *WebSocketTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}
