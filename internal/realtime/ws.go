package realtime

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"claimlens/internal/domain"
	"claimlens/internal/port"
)

// WebSocketTransport implements port.Transport over a WebSocket connection
// carrying JSON envelopes.
type WebSocketTransport struct {
	dialer    *websocket.Dialer
	authToken string
}

// NewWebSocketTransport creates a transport. authToken, when set, is sent as
// a bearer token on the dial request.
func NewWebSocketTransport(authToken string) *WebSocketTransport {
	return &WebSocketTransport{
		dialer:    websocket.DefaultDialer,
		authToken: authToken,
	}
}

// Dial opens a WebSocket connection to the push endpoint.
func (t *WebSocketTransport) Dial(ctx context.Context, url string) (port.TransportConn, error) {
	header := http.Header{}
	if t.authToken != "" {
		header.Set("Authorization", "Bearer "+t.authToken)
	}
	conn, resp, err := t.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() (*domain.ChannelMessage, error) {
	var msg domain.ChannelMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *wsConn) WriteMessage(msg *domain.ChannelMessage) error {
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
