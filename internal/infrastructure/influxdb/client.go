package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homectl-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultBatchSize      = 100

	// defaultFlushInterval is in seconds, like config.InfluxDBConfig.FlushInterval.
	defaultFlushInterval = 10
)

// pointWriter is the part of api.WriteAPI the client needs.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// pinger is the part of influxdb2.Client the client needs.
type pinger interface {
	Ping(ctx context.Context) (bool, error)
	Close()
}

// Client writes dispatch timings and device state to InfluxDB. It is both a
// registry.Observer and an event.Sink. Writes are batched and never block
// the caller.
type Client struct {
	client   pinger
	writeAPI pointWriter

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect pings the server at cfg.URL and opens a batching write API on
// cfg.Org/cfg.Bucket.
//
// Returns:
//   - *Client: Ready for Observe and Publish
//   - error: ErrDisabled when cfg.Enabled is false, or a wrapped ErrConnectionFailed
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := newClient(client, writeAPI)
	go c.handleWriteErrors(writeAPI.Errors())
	return c, nil
}

// writeOptions applies batch size and flush interval, falling back to
// 100 points and 10s.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch, flush := cfg.BatchSize, cfg.FlushInterval
	if batch <= 0 {
		batch = defaultBatchSize
	}
	if flush <= 0 {
		flush = defaultFlushInterval
	}
	// #nosec G115 -- both positive after the fallbacks above
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint((time.Duration(flush) * time.Second).Milliseconds()))
}

func ping(ctx context.Context, p pinger) error {
	healthy, err := p.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return errors.New("ping: server not healthy")
	}
	return nil
}

func newClient(client pinger, writeAPI pointWriter) *Client {
	return &Client{client: client, writeAPI: writeAPI, connected: true}
}

// handleWriteErrors feeds async write failures to the SetOnError callback
// until the write API closes errs.
func (c *Client) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		cb := c.onError
		c.mu.RUnlock()
		if cb != nil {
			cb(err)
		}
	}
}

// Close flushes buffered points and releases the connection. Later calls,
// and writes after Close, are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	wasOpen := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasOpen {
		c.writeAPI.Flush()
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server, bounded by 5s.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected is false once Close has been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError installs the callback for async write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Flush pushes out buffered points immediately.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

func (c *Client) writePoint(p *write.Point) {
	if c.IsConnected() {
		c.writeAPI.WritePoint(p)
	}
}
