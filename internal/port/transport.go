package port

import (
	"context"

	"claimlens/internal/domain"
)

// TransportConn is one open push-transport connection. ReadMessage blocks
// until a message arrives or the connection dies; after an error the
// connection is unusable and must be closed.
type TransportConn interface {
	ReadMessage() (*domain.ChannelMessage, error)
	WriteMessage(msg *domain.ChannelMessage) error
	Close() error
}

// Transport dials push-transport connections.
type Transport interface {
	Dial(ctx context.Context, url string) (TransportConn, error)
}
