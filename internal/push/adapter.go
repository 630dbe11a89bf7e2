package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"paydash/internal/infra"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pushMaxRetries   = 10
	pushBaseDelay    = 1 * time.Second
	pushMaxDelay     = 60 * time.Second
	pushReadTimeout  = 60 * time.Second
	pushDialTimeout  = 10 * time.Second
	protocolVersion  = "7"
	clientName       = "paydash"
	eventEstablished = "pusher:connection_established"
	eventSubscribe   = "pusher:subscribe"
	eventUnsubscribe = "pusher:unsubscribe"
	eventPing        = "pusher:ping"
	eventPong        = "pusher:pong"
)

// Handler receives the raw data payload of one named event on one channel.
type Handler func(data json.RawMessage)

// BoundChannel is a live channel subscription accepting event bindings.
type BoundChannel interface {
	Name() string
	Bind(event string, h Handler)
	Unbind(event string)
}

// Subscriber is the capability the event routers consume.
type Subscriber interface {
	Subscribe(channel string) BoundChannel
	Unsubscribe(channel string)
	IsConnected() bool
}

// Options configure the push transport endpoint.
type Options struct {
	AppKey  string // empty key disables the adapter entirely
	Cluster string
	Host    string
	Port    int
	TLS     bool
}

// wireFrame is the transport's message envelope in both directions.
type wireFrame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Adapter owns the single websocket connection of an application session
// and the set of channel subscriptions multiplexed over it. When no app key
// is configured it degrades to a permanently-disconnected no-op so the rest
// of the app keeps working without push.
type Adapter struct {
	opts     Options
	disabled bool
	socketID string

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool

	channels map[string]*channel

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewAdapter creates the push transport adapter.
func NewAdapter(opts Options) *Adapter {
	a := &Adapter{
		opts:     opts,
		disabled: opts.AppKey == "",
		channels: make(map[string]*channel),
		logger:   slog.Default().With("module", "push"),
	}
	if a.disabled {
		a.logger.Warn("push app key not configured, realtime updates disabled")
	}
	return a
}

// Connect starts the connection loop. Safe to call on a disabled adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.disabled {
		return nil
	}
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go a.connectionLoop(ctx)
	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (a *Adapter) connectionLoop(ctx context.Context) {
	defer a.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("push panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("push connection loop stopped")
			return
		default:
		}

		err := a.connect(ctx)
		if err != nil {
			a.logger.Warn("push connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := calculateBackoff(retryCount)
			retryCount++
			if retryCount > pushMaxRetries {
				a.logger.Error("push max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		infra.GlobalMetrics.RecordReconnect()

		a.readLoop(ctx)
	}
}

// calculateBackoff returns the delay for the current retry attempt
func calculateBackoff(retryCount int) time.Duration {
	delay := pushBaseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > pushMaxDelay {
		delay = pushMaxDelay
	}
	return delay
}

func (a *Adapter) endpoint() string {
	scheme := "ws"
	if a.opts.TLS {
		scheme = "wss"
	}
	host := a.opts.Host
	if host == "" {
		host = fmt.Sprintf("ws-%s.pusher.com", a.opts.Cluster)
	}
	if a.opts.Port > 0 {
		host = fmt.Sprintf("%s:%d", host, a.opts.Port)
	}
	return fmt.Sprintf("%s://%s/app/%s?protocol=%s&client=%s&id=%s",
		scheme, host, a.opts.AppKey, protocolVersion, clientName, uuid.NewString())
}

// connect dials the transport and resubscribes every live channel.
func (a *Adapter) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: pushDialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, a.endpoint(), http.Header{})
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	// The server speaks first: wait for connection_established before
	// flagging connected or subscribing.
	conn.SetReadDeadline(time.Now().Add(pushDialTimeout))
	var frame wireFrame
	if err := conn.ReadJSON(&frame); err != nil {
		a.closeConnection()
		return fmt.Errorf("handshake read failed: %w", err)
	}
	if frame.Event != eventEstablished {
		a.closeConnection()
		return fmt.Errorf("unexpected handshake event: %s", frame.Event)
	}
	var hello struct {
		SocketID string `json:"socket_id"`
	}
	if raw := unquote(frame.Data); raw != nil {
		json.Unmarshal(raw, &hello)
	}

	a.mu.Lock()
	a.socketID = hello.SocketID
	a.connected = true
	names := make([]string, 0, len(a.channels))
	for name := range a.channels {
		names = append(names, name)
	}
	a.mu.Unlock()

	for _, name := range names {
		if err := a.sendSubscribe(name); err != nil {
			a.closeConnection()
			return fmt.Errorf("resubscribe %s failed: %w", name, err)
		}
	}

	a.logger.Info("push connected",
		slog.String("socket_id", hello.SocketID),
		slog.Int("channels", len(names)),
	)
	return nil
}

// Subscribe returns the live handle for a channel, creating the
// subscription when needed. At most one subscription exists per channel
// name; a second call returns the same handle.
func (a *Adapter) Subscribe(name string) BoundChannel {
	a.mu.Lock()
	if ch, ok := a.channels[name]; ok {
		a.mu.Unlock()
		return ch
	}
	ch := newChannel(name)
	a.channels[name] = ch
	connected := a.connected
	a.mu.Unlock()

	infra.GlobalMetrics.SetActiveSubscriptions(int32(a.channelCount()))

	if connected {
		if err := a.sendSubscribe(name); err != nil {
			a.logger.Warn("subscribe send failed, will retry on reconnect",
				slog.String("channel", name), slog.Any("error", err))
		}
	}
	return ch
}

// Unsubscribe tears the channel down and drops all its bindings.
func (a *Adapter) Unsubscribe(name string) {
	a.mu.Lock()
	ch, ok := a.channels[name]
	if ok {
		delete(a.channels, name)
	}
	connected := a.connected
	a.mu.Unlock()

	if !ok {
		return
	}
	ch.clear()
	infra.GlobalMetrics.SetActiveSubscriptions(int32(a.channelCount()))

	if connected {
		frame := wireFrame{Event: eventUnsubscribe, Data: channelData(name)}
		if err := a.writeFrame(frame); err != nil {
			a.logger.Debug("unsubscribe send failed", slog.String("channel", name), slog.Any("error", err))
		}
	}
}

func (a *Adapter) channelCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.channels)
}

func (a *Adapter) sendSubscribe(name string) error {
	return a.writeFrame(wireFrame{Event: eventSubscribe, Data: channelData(name)})
}

func channelData(name string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"channel": name})
	return data
}

// writeFrame sends a frame on the connection in a thread-safe manner.
func (a *Adapter) writeFrame(frame wireFrame) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()

	if conn == nil {
		return ErrAdapterClosed
	}
	return conn.WriteJSON(frame)
}

// readLoop reads frames until the connection drops.
func (a *Adapter) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a.mu.RLock()
		conn := a.conn
		a.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(pushReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Warn("push read error", slog.Any("error", err))
			}
			a.closeConnection()
			return
		}

		a.handleMessage(message)
	}
}

// handleMessage routes one inbound frame to its channel's bindings.
func (a *Adapter) handleMessage(message []byte) {
	var frame wireFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		a.logger.Debug("push frame parse error", slog.Any("error", err))
		return
	}

	switch frame.Event {
	case eventPing:
		a.writeFrame(wireFrame{Event: eventPong})
		return
	case eventEstablished, eventPong:
		return
	}

	if frame.Channel == "" {
		return
	}

	a.mu.RLock()
	ch := a.channels[frame.Channel]
	a.mu.RUnlock()

	if ch == nil {
		return
	}
	ch.dispatch(frame.Event, unquote(frame.Data))
	infra.GlobalMetrics.RecordEventDelivered()
}

// unquote unwraps the transport's double-encoded data field: event data
// arrives as a JSON string containing JSON.
func unquote(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	if raw[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return raw
	}
	return json.RawMessage(inner)
}

// closeConnection safely closes the websocket connection.
func (a *Adapter) closeConnection() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.connected = false
}

// Close tears the transport down. Idempotent; a second call is a no-op.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.closeConnection()
		a.wg.Wait()
		a.logger.Info("push disconnected")
	})
}

// IsConnected returns connection status.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}
