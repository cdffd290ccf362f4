package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the manager.
//
// It tracks subscriptions so they are restored after a reconnect, and
// publishes a retained online/offline status with an LWT fallback.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// mu guards everything below.
	mu            sync.RWMutex
	subscriptions map[string]subscription
	connected     bool
	onConnect     func()
	logger        Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
// Handlers run on paho goroutines and should not block.
// A returned error is logged and does not affect acknowledgment.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker and publishes the
// retained online status.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker is not reachable in time
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.resume() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.mark(false)
		c.warn("MQTT connection lost", "error", err)
	})
	c.client = pahomqtt.NewClient(opts)

	if err := await(c.client.Connect(), ErrConnectionFailed, defaultConnectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, err
	}

	// paho calls the OnConnect handler on its own goroutine.
	c.mark(true)
	return c, nil
}

// await waits up to wait for token and wraps a timeout or failure in sentinel.
func await(token pahomqtt.Token, sentinel error, wait time.Duration) error {
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("%w: timeout after %v", sentinel, wait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}

// resume runs on every (re)connect: it restores subscriptions, announces
// the manager online and fires the OnConnect callback.
func (c *Client) resume() {
	c.mu.Lock()
	c.connected = true
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	callback := c.onConnect
	c.mu.Unlock()

	for _, sub := range subs {
		c.client.Subscribe(sub.topic, sub.qos, c.deliver(sub.handler))
	}
	c.announce("online", "")
	if callback != nil {
		callback()
	}
}

// announce publishes the retained manager status. Failures are ignored;
// the broker falls back to the will message.
func (c *Client) announce(status, reason string) {
	payload, err := statusPayload(c.cfg.Broker.ClientID, status, reason)
	if err != nil {
		return
	}
	c.client.Publish(Topics{}.ManagerStatus(), byte(c.cfg.QoS), true, payload).
		WaitTimeout(defaultPublishTimeout)
}

func (c *Client) mark(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

// Close publishes the graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.announce("offline", "graceful_shutdown")
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.mark(false)
	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetLogger sets a logger for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) warn(msg string, args ...any) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// deliver adapts a MessageHandler to paho. Handler errors are logged and
// a panicking handler does not take down the paho router.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.mu.RLock()
				logger := c.logger
				c.mu.RUnlock()
				if logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
