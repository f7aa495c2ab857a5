// Package bus owns the long-lived NATS connection and exposes the publish
// primitives the gateway needs: single publish and batch publish, both
// flushed before they return so the broker has acknowledged the bytes.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when the connection could not be established
// or re-established after the configured number of attempts.
var ErrNotConnected = errors.New("message bus connection not established")

// Status is the client's view of the connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Config holds NATS client configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for connection identification.
	Name string

	// MaxReconnects is the transport-level reconnect budget.
	// Use -1 for infinite reconnects.
	MaxReconnects int

	// ReconnectWait is the time the transport waits between reconnects.
	ReconnectWait time.Duration

	// Timeout bounds the initial dial and the liveness probe.
	Timeout time.Duration

	// FlushTimeout bounds each publish flush.
	FlushTimeout time.Duration

	// ConnectRetries is how many times ensureConnected re-attempts the
	// on-demand connect before giving up. The delay between attempts is
	// fixed, not exponential.
	ConnectRetries int

	// ConnectRetryDelay is the fixed delay between connect attempts.
	ConnectRetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               nats.DefaultURL,
		Name:              "flowgate-gateway",
		MaxReconnects:     -1,
		ReconnectWait:     2 * time.Second,
		Timeout:           5 * time.Second,
		FlushTimeout:      10 * time.Second,
		ConnectRetries:    5,
		ConnectRetryDelay: 500 * time.Millisecond,
	}
}

// conn is the slice of *nats.Conn the client uses, extracted so tests can
// substitute a double.
type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	IsConnected() bool
	Close()
}

// dialFunc establishes a connection. The default dials NATS.
type dialFunc func(cfg Config, opts ...nats.Option) (conn, error)

func natsDial(cfg Config, opts ...nats.Option) (conn, error) {
	return nats.Connect(cfg.URL, opts...)
}

// Client owns one connection to the message bus. Publish calls may be issued
// concurrently; connect and disconnect transitions are mutually exclusive.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dial   dialFunc

	mu     sync.Mutex
	conn   conn
	status Status
}

// NewClient creates a disconnected client; call Connect to establish the
// connection, or let the first publish do it on demand.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		dial:   natsDial,
		status: StatusDisconnected,
	}
}

// Status returns the client's current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect establishes the connection and verifies liveness with a round-trip
// probe. It is idempotent: a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil && c.status == StatusConnected && c.conn.IsConnected() {
		return nil
	}

	c.status = StatusConnecting

	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.Timeout(c.cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.markDegraded(err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.markConnected()
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.markClosed()
		}),
	}

	nc, err := c.dial(c.cfg, opts...)
	if err != nil {
		c.status = StatusDisconnected
		return fmt.Errorf("failed to connect to message bus: %w", err)
	}

	// Round-trip probe: only a flushed connection counts as connected.
	if err := nc.FlushTimeout(c.cfg.Timeout); err != nil {
		nc.Close()
		c.status = StatusDisconnected
		return fmt.Errorf("message bus liveness probe failed: %w", err)
	}

	c.conn = nc
	c.status = StatusConnected
	c.logger.Info("message bus connected", slog.String("url", c.cfg.URL))
	return nil
}

// markDegraded records a transport disconnect so publishes re-check the
// connection instead of discovering the failure mid-flush.
func (c *Client) markDegraded(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusConnected {
		c.status = StatusReconnecting
	}
	if err != nil {
		c.logger.Warn("message bus disconnected", slog.String("error", err.Error()))
	}
}

func (c *Client) markConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusConnected
	c.logger.Info("message bus reconnected")
}

func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.status = StatusDisconnected
	}
}

// ensureConnected returns a live connection, retrying Connect a bounded
// number of times with a fixed delay before surfacing ErrNotConnected.
func (c *Client) ensureConnected(ctx context.Context) (conn, error) {
	c.mu.Lock()
	if c.conn != nil && c.status == StatusConnected && c.conn.IsConnected() {
		nc := c.conn
		c.mu.Unlock()
		return nc, nil
	}
	c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < c.cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.ConnectRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		c.mu.Lock()
		lastErr = c.connectLocked(ctx)
		if lastErr == nil {
			nc := c.conn
			c.mu.Unlock()
			return nc, nil
		}
		c.mu.Unlock()
	}

	return nil, fmt.Errorf("%w: %v", ErrNotConnected, lastErr)
}

// Publish enqueues one message with headers and flushes, returning only once
// the broker has acknowledged the bytes were sent.
func (c *Client) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nc, err := c.ensureConnected(ctx)
	if err != nil {
		return err
	}

	if err := nc.PublishMsg(buildMsg(subject, data, headers)); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	if err := nc.FlushTimeout(c.cfg.FlushTimeout); err != nil {
		return fmt.Errorf("failed to flush message: %w", err)
	}
	return nil
}

// PublishBatch enqueues every message (same headers applied to all) and then
// performs a single flush. Messages are offered to the bus in the order
// given. This is the high-throughput path: one acknowledgement round trip
// regardless of batch size.
func (c *Client) PublishBatch(ctx context.Context, subject string, messages [][]byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nc, err := c.ensureConnected(ctx)
	if err != nil {
		return err
	}

	for _, data := range messages {
		if err := nc.PublishMsg(buildMsg(subject, data, headers)); err != nil {
			return fmt.Errorf("failed to enqueue batch message: %w", err)
		}
	}
	if err := nc.FlushTimeout(c.cfg.FlushTimeout); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

// QueueSubscribe registers a queue subscription so instances sharing the
// queue name split the messages between them.
func (c *Client) QueueSubscribe(ctx context.Context, subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	nc, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := nc.QueueSubscribe(subject, queue, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// Disconnect closes the connection and resets state. Safe to call when
// already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.status = StatusDisconnected
}

func buildMsg(subject string, data []byte, headers map[string]string) *nats.Msg {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	if len(headers) > 0 {
		msg.Header = make(nats.Header)
		for k, v := range headers {
			msg.Header.Set(k, v)
		}
	}
	return msg
}
