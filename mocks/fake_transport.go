package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"claimlens/internal/domain"
	"claimlens/internal/port"
)

// ErrFakeConnClosed is returned by a FakeConn read after Close.
var ErrFakeConnClosed = errors.New("fake transport connection closed")

// FakeTransport scripts push-transport connections for channel tests. Each
// Dial consumes the next entry of DialErrs (nil = success); once the script
// runs out every dial succeeds.
type FakeTransport struct {
	mu        sync.Mutex
	DialErrs  []error
	conns     []*FakeConn
	dials     int
	dialTimes []time.Time
}

func (t *FakeTransport) Dial(ctx context.Context, url string) (port.TransportConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.dials
	t.dials++
	t.dialTimes = append(t.dialTimes, time.Now())
	if i < len(t.DialErrs) && t.DialErrs[i] != nil {
		return nil, t.DialErrs[i]
	}
	conn := NewFakeConn()
	t.conns = append(t.conns, conn)
	return conn, nil
}

// DialCount returns how many dials were attempted.
func (t *FakeTransport) DialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// DialTimes returns the timestamp of every dial attempt, in order.
func (t *FakeTransport) DialTimes() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Time, len(t.dialTimes))
	copy(out, t.dialTimes)
	return out
}

// LastConn returns the most recently opened connection, or nil.
func (t *FakeTransport) LastConn() *FakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// FakeConn is a scripted transport connection.
type FakeConn struct {
	incoming chan *domain.ChannelMessage
	readErr  chan error
	closed   chan struct{}
	once     sync.Once

	mu     sync.Mutex
	writes []*domain.ChannelMessage
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		incoming: make(chan *domain.ChannelMessage, 64),
		readErr:  make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

// Deliver queues an incoming message for the reader.
func (c *FakeConn) Deliver(msg *domain.ChannelMessage) {
	c.incoming <- msg
}

// FailRead makes the next blocked or future read return err, simulating a
// transport drop.
func (c *FakeConn) FailRead(err error) {
	select {
	case c.readErr <- err:
	default:
	}
}

// Writes returns all messages written so far.
func (c *FakeConn) Writes() []*domain.ChannelMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.ChannelMessage, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *FakeConn) ReadMessage() (*domain.ChannelMessage, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case err := <-c.readErr:
		return nil, err
	case <-c.closed:
		return nil, ErrFakeConnClosed
	}
}

func (c *FakeConn) WriteMessage(msg *domain.ChannelMessage) error {
	select {
	case <-c.closed:
		return ErrFakeConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, msg)
	return nil
}

func (c *FakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
