package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	// One point per tick plus one per process; at the default 1 Hz tick a
	// batch of 64 flushes every couple of seconds.
	defaultBatchSize     = 64
	defaultFlushInterval = 5 * time.Second
)

// Client batches manager telemetry into one InfluxDB bucket.
//
// Writes never block the caller. A failed batch is counted and handed to
// the SetOnError callback; the loop does not see it.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Methods on a nil *Client are no-ops.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	closed      atomic.Bool
	writeErrors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and opens a batching writer.
//
// Every point carries the tags in defaultTags (typically the device type),
// so dashboards can split a fleet without each caller repeating them.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: InfluxDB configuration from config.yaml
//   - defaultTags: Tags added to every point; may be nil
//
// Returns:
//   - *Client: Ready client; Close it to flush
//   - error: ErrDisabled when disabled, ErrConnectionFailed when the ping fails
func Connect(ctx context.Context, cfg config.InfluxDBConfig, defaultTags map[string]string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(defaultBatchSize).
		SetFlushInterval(uint(defaultFlushInterval.Milliseconds()))
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(uint(cfg.BatchSize))
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval) * 1000) //nolint:gosec // positive, checked above
	}
	for k, v := range defaultTags {
		opts.AddDefaultTag(k, v)
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.watchErrors()
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// watchErrors runs until the write API closes its error channel.
func (c *Client) watchErrors() {
	for err := range c.writeAPI.Errors() {
		c.writeErrors.Add(1)
		c.mu.RLock()
		cb := c.onError
		c.mu.RUnlock()
		if cb != nil {
			cb(err)
		}
	}
}

// Close flushes pending points and releases the client. Safe to call twice.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool {
	return c != nil && !c.closed.Load()
}

// WriteErrors returns how many batches have failed since Connect.
func (c *Client) WriteErrors() uint64 {
	if c == nil {
		return 0
	}
	return c.writeErrors.Load()
}

// SetOnError sets a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
