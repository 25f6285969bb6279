// Package realtime maintains one logical connection to the claim push
// endpoint and delivers application-level event streams despite transport
// churn: reconnection with exponential backoff, heartbeats, and coalesced
// claim-update batches.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"claimlens/internal/domain"
	"claimlens/internal/port"
)

// Config holds channel settings.
type Config struct {
	URL                   string
	HeartbeatInterval     time.Duration
	BaseReconnectInterval time.Duration
	MaxReconnectAttempts  int
	ThrottleWindow        time.Duration
	MinBatchInterval      time.Duration
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.BaseReconnectInterval <= 0 {
		c.BaseReconnectInterval = time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ThrottleWindow <= 0 {
		c.ThrottleWindow = 100 * time.Millisecond
	}
	if c.MinBatchInterval <= 0 {
		c.MinBatchInterval = 500 * time.Millisecond
	}
}

// Channel owns one push-transport connection and its lifecycle. All state
// transitions happen via Connect, Disconnect, and transport callbacks; the
// epoch counter turns callbacks from a torn-down connection into no-ops.
type Channel struct {
	transport port.Transport
	cfg       Config
	batcher   *claimBatcher

	mu             sync.Mutex
	state          domain.ConnectionState
	conn           port.TransportConn
	attempts       int
	epoch          int
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}

	subMu         sync.Mutex
	claimSubs     map[uuid.UUID]chan []domain.ClaimUpdateEvent
	metricSubs    map[uuid.UUID]chan domain.ClaimMetrics
	noteSubs      map[uuid.UUID]chan domain.Notification
	latestMetrics *domain.ClaimMetrics
}

// NewChannel creates a Channel. It does not connect; call Connect.
func NewChannel(transport port.Transport, cfg Config) *Channel {
	cfg.applyDefaults()
	c := &Channel{
		transport:  transport,
		cfg:        cfg,
		state:      domain.ConnDisconnected,
		claimSubs:  make(map[uuid.UUID]chan []domain.ClaimUpdateEvent),
		metricSubs: make(map[uuid.UUID]chan domain.ClaimMetrics),
		noteSubs:   make(map[uuid.UUID]chan domain.Notification),
	}
	c.batcher = newClaimBatcher(cfg.ThrottleWindow, cfg.MinBatchInterval, c.emitClaimBatch)
	return c
}

// State returns the current connection state.
func (c *Channel) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the transport. It is idempotent: a no-op while connecting or
// connected. Calling it in the error state resets the reconnect-attempt
// counter and retries.
func (c *Channel) Connect() {
	c.mu.Lock()
	switch c.state {
	case domain.ConnConnecting, domain.ConnConnected:
		c.mu.Unlock()
		return
	case domain.ConnError:
		c.attempts = 0
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.state = domain.ConnConnecting
	epoch := c.epoch
	c.mu.Unlock()

	go c.dial(epoch)
}

// Disconnect tears the channel down: heartbeat and reconnect timers are
// canceled, the transport is closed, and any in-flight callback becomes a
// no-op. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.epoch++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.teardownConnLocked()
	c.state = domain.ConnDisconnected
	c.attempts = 0
	c.mu.Unlock()

	c.batcher.reset()
}

// Send writes a message on the transport. It silently no-ops when not
// connected and stamps the current time if the message carries none.
func (c *Channel) Send(msg *domain.ChannelMessage) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == domain.ConnConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := conn.WriteMessage(msg); err != nil {
		// The read loop sees the same dead connection and drives reconnect.
		log.Printf("realtime.Channel: write failed: %v", err)
	}
}

// SubscribeClaimUpdates registers for coalesced claim-update batches.
// The returned func unsubscribes.
func (c *Channel) SubscribeClaimUpdates() (<-chan []domain.ClaimUpdateEvent, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	key := uuid.New()
	ch := make(chan []domain.ClaimUpdateEvent, 16)
	c.claimSubs[key] = ch
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.claimSubs[key]; ok {
			delete(c.claimSubs, key)
			close(ch)
		}
	}
}

// SubscribeMetrics registers for metrics snapshots. The stream conflates:
// a slow consumer sees only the latest snapshot.
func (c *Channel) SubscribeMetrics() (<-chan domain.ClaimMetrics, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	key := uuid.New()
	ch := make(chan domain.ClaimMetrics, 1)
	c.metricSubs[key] = ch
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.metricSubs[key]; ok {
			delete(c.metricSubs, key)
			close(ch)
		}
	}
}

// LatestMetrics returns the most recent metrics snapshot, if any arrived.
func (c *Channel) LatestMetrics() (domain.ClaimMetrics, bool) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.latestMetrics == nil {
		return domain.ClaimMetrics{}, false
	}
	return *c.latestMetrics, true
}

// SubscribeNotifications registers for notification fan-out.
func (c *Channel) SubscribeNotifications() (<-chan domain.Notification, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	key := uuid.New()
	ch := make(chan domain.Notification, 16)
	c.noteSubs[key] = ch
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.noteSubs[key]; ok {
			delete(c.noteSubs, key)
			close(ch)
		}
	}
}

func (c *Channel) dial(epoch int) {
	conn, err := c.transport.Dial(context.Background(), c.cfg.URL)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		log.Printf("realtime.Channel: dial %s failed: %v", c.cfg.URL, err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.state = domain.ConnConnected
	c.attempts = 0
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	log.Printf("realtime.Channel: connected to %s", c.cfg.URL)
	go c.readLoop(conn, epoch)
	go c.heartbeatLoop(stop)
}

func (c *Channel) readLoop(conn port.TransportConn, epoch int) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			c.handleTransportError(epoch, err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Channel) handleTransportError(epoch int, err error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	log.Printf("realtime.Channel: transport closed: %v", err)
	c.epoch++
	c.teardownConnLocked()
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

// scheduleReconnectLocked arms the next automatic connect attempt with
// exponential backoff, or parks the channel in the error state once the
// attempt ceiling is reached. Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = domain.ConnError
		log.Printf("realtime.Channel: giving up after %d reconnect attempts", c.attempts)
		return
	}
	c.attempts++
	delay := c.cfg.BaseReconnectInterval * time.Duration(1<<(c.attempts-1))
	c.state = domain.ConnDisconnected
	epoch := c.epoch

	log.Printf("realtime.Channel: reconnect attempt %d/%d in %s", c.attempts, c.cfg.MaxReconnectAttempts, delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := epoch != c.epoch || c.state != domain.ConnDisconnected
		if !stale {
			c.reconnectTimer = nil
		}
		c.mu.Unlock()
		if !stale {
			c.Connect()
		}
	})
}

// teardownConnLocked stops the heartbeat and closes the transport. Caller
// holds c.mu.
func (c *Channel) teardownConnLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Send(&domain.ChannelMessage{Type: domain.MessageHeartbeat})
		}
	}
}

// dispatch demultiplexes one incoming envelope by type. Heartbeats are
// echoed and never surfaced to consumers.
func (c *Channel) dispatch(msg *domain.ChannelMessage) {
	switch msg.Type {
	case domain.MessageClaimUpdate:
		var ev domain.ClaimUpdateEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			log.Printf("realtime.Channel: bad claim_update payload: %v", err)
			return
		}
		c.batcher.add(ev)

	case domain.MessageMetrics:
		var m domain.ClaimMetrics
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			log.Printf("realtime.Channel: bad metrics payload: %v", err)
			return
		}
		c.publishMetrics(m)

	case domain.MessageNotification:
		var n domain.Notification
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			log.Printf("realtime.Channel: bad notification payload: %v", err)
			return
		}
		c.publishNotification(n)

	case domain.MessageHeartbeat:
		c.Send(&domain.ChannelMessage{Type: domain.MessageHeartbeat})

	default:
		log.Printf("realtime.Channel: unknown message type %q", msg.Type)
	}
}

func (c *Channel) emitClaimBatch(batch []domain.ClaimUpdateEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.claimSubs {
		sendDropOldest(ch, batch)
	}
}

func (c *Channel) publishMetrics(m domain.ClaimMetrics) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.latestMetrics = &m
	for _, ch := range c.metricSubs {
		// Conflate: replace an unread snapshot rather than queue behind it.
		select {
		case ch <- m:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- m:
			default:
			}
		}
	}
}

func (c *Channel) publishNotification(n domain.Notification) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.noteSubs {
		sendDropOldest(ch, n)
	}
}

func sendDropOldest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
