package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Default reconnection parameters.
const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 1 * time.Second
)

// UpdateHandler is invoked once per incoming graph_update/chat_update,
// on the client's own read goroutine.
type UpdateHandler func(Message)

// ClientConfig configures a [Client].
type ClientConfig struct {
	// URL is the broadcast server's WebSocket endpoint.
	URL string

	// Subscription is resent on every connect and reconnect.
	Subscription Subscription

	// MaxAttempts bounds reconnection attempts after a disconnect. Defaults
	// to 5 if zero.
	MaxAttempts int

	// BaseBackoff is the unit backoff duration; attempt N waits
	// BaseBackoff * N (linear, not exponential). Defaults to 1s if zero.
	BaseBackoff time.Duration

	// OnUpdate is called for every graph_update/chat_update delivered by
	// the server. May be nil.
	OnUpdate UpdateHandler

	// OnReconnect is called after a successful reconnect and re-subscribe.
	// May be nil.
	OnReconnect func()

	Logger *slog.Logger
}

// Client maintains one WebSocket connection to a [Server], resubscribing on
// connect and reconnecting with linear backoff on disconnect.
//
// Reconnection here deliberately uses linear backoff (delay = base *
// attemptNumber) rather than the doubling backoff a connection monitor would
// normally use, since after a bounded handful of attempts a viewer process
// is expected to surface the outage rather than keep backing off
// indefinitely.
type Client struct {
	cfg ClientConfig

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	stopOnce sync.Once
}

// NewClient returns a [Client] configured by cfg. Call [Client.Run] to
// connect and begin servicing the connection.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{cfg: cfg, done: make(chan struct{})}
}

// Run connects, subscribes, and services the connection until ctx is
// cancelled, [Client.Close] is called, or reconnection is exhausted.
// It blocks for the lifetime of the connection.
func (c *Client) Run(ctx context.Context) error {
	if err := c.connectAndSubscribe(ctx); err != nil {
		return fmt.Errorf("broadcast: initial connect: %w", err)
	}

	for {
		err := c.readLoop(ctx)
		if err == nil {
			return nil // context cancelled or Close called
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		default:
		}

		c.cfg.Logger.Warn("broadcast: connection lost, reconnecting", "error", err)
		if reconnectErr := c.reconnect(ctx); reconnectErr != nil {
			select {
			case <-c.done:
				return nil // Close raced with reconnect; not a failure.
			default:
			}
			return fmt.Errorf("broadcast: reconnect exhausted: %w", reconnectErr)
		}
	}
}

// Send transmits a graph_update or chat_update to the server.
func (c *Client) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("broadcast: client not connected")
	}
	return wsjson.Write(ctx, conn, msg)
}

// Close terminates the connection and stops any future reconnect attempts.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

// connectAndSubscribe dials the server, waits for the connected envelope,
// then sends this client's subscription; the acknowledgement is not awaited
// here.
func (c *Client) connectAndSubscribe(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	var connected Message
	if err := wsjson.Read(ctx, conn, &connected); err != nil {
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return fmt.Errorf("await connected: %w", err)
	}
	if connected.Type != TypeConnected {
		conn.Close(websocket.StatusInternalError, "unexpected handshake message")
		return fmt.Errorf("expected connected, got %q", connected.Type)
	}

	sub := c.cfg.Subscription
	subscribeMsg := Message{Type: TypeSubscribe, WorkspaceID: sub.WorkspaceID, SystemID: sub.SystemID, UserID: sub.UserID}
	if err := wsjson.Write(ctx, conn, subscribeMsg); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return fmt.Errorf("send subscribe: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// readLoop receives messages until the connection fails or closes cleanly
// via [Client.Close]/context cancellation, in which case it returns nil.
func (c *Client) readLoop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("broadcast: not connected")
	}

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-c.done:
				return nil
			default:
				return err
			}
		}

		switch msg.Type {
		case TypeGraphUpdate, TypeChatUpdate:
			if c.cfg.OnUpdate != nil {
				c.cfg.OnUpdate(msg)
			}
		case TypePing:
			_ = wsjson.Write(ctx, conn, Message{Type: TypePong})
		case TypeShutdown:
			return fmt.Errorf("broadcast: server shutdown: %s", msg.Reason)
		}
	}
}

// reconnect retries connectAndSubscribe with linear backoff: attempt N
// waits BaseBackoff*N before dialing. It gives up after MaxAttempts.
func (c *Client) reconnect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("client closed")
		default:
		}

		delay := backoffDelay(c.cfg.BaseBackoff, attempt)
		c.cfg.Logger.Info("broadcast: reconnect attempt", "attempt", attempt, "max_attempts", c.cfg.MaxAttempts, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("client closed")
		}

		if err := c.connectAndSubscribe(ctx); err != nil {
			lastErr = err
			c.cfg.Logger.Warn("broadcast: reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		c.cfg.Logger.Info("broadcast: reconnect succeeded", "attempt", attempt)
		if c.cfg.OnReconnect != nil {
			c.cfg.OnReconnect()
		}
		return nil
	}
	return fmt.Errorf("exhausted %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// backoffDelay returns the linear reconnect delay for the given attempt
// number (1-indexed): base*attemptNumber, not exponential doubling.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}
