// Package client maintains a read-only mirror of a remote scene over the
// websocket replication feed. The mirror starts from a full snapshot and is
// kept current by applying the server's per-frame deltas.
package client

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/scene"
)

// Client mirrors one remote scene.
type Client struct {
	conn *websocket.Conn

	// The mirror scene. Guarded by sceneMu: the read loop mutates it,
	// View reads it.
	scene   *scene.Scene
	sceneMu sync.Mutex

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool
	done      chan struct{}
	synced    chan struct{} // closed after the first snapshot

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

// Config holds configuration for the client.
type Config struct {
	// Connection settings
	ServerAddr     string
	ConnectTimeout time.Duration

	// Logging
	LogLevel log.Level
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() Config {
	return Config{
		ServerAddr:     "localhost:8080",
		ConnectTimeout: 30 * time.Second,
		LogLevel:       log.LevelInfo,
	}
}

// New creates a disconnected client.
func New(config Config, logger log.Log) *Client {
	if logger == nil {
		logger = log.New(config.LogLevel)
	}
	return &Client{
		scene:  scene.NewScene(logger),
		config: config,
		logger: logger.With(log.String("component", "client")),
		done:   make(chan struct{}),
		synced: make(chan struct{}),
	}
}

// Connect dials the feed and starts mirroring. The mirror is empty until
// the initial snapshot arrives; use WaitSynced to block for it.
func (c *Client) Connect() error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
	url := fmt.Sprintf("ws://%s/ws", c.config.ServerAddr)
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return err
	}
	c.conn = conn

	c.workerGroup.Add(1)
	go c.readLoop()

	c.logger.Info("connected", log.String("addr", c.config.ServerAddr))
	return nil
}

// WaitSynced blocks until the initial snapshot has been applied.
func (c *Client) WaitSynced(timeout time.Duration) error {
	if atomic.LoadInt32(&c.connected) != 1 {
		return ErrNotConnected
	}
	select {
	case <-c.synced:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-time.After(timeout):
		return ErrSyncTimeout
	}
}

// View runs fn with exclusive access to the mirror scene. The scene must
// not be retained or mutated; it is a read model owned by the feed.
func (c *Client) View(fn func(*scene.Scene)) {
	c.sceneMu.Lock()
	defer c.sceneMu.Unlock()
	fn(c.scene)
}

func (c *Client) readLoop() {
	defer c.workerGroup.Done()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 0 {
				c.logger.Warn("feed read failed", log.Err(err))
			}
			return
		}
		msg, err := replication.Decode(data)
		if err != nil {
			c.logger.Error("bad feed message", log.Err(err))
			continue
		}
		c.apply(msg)
	}
}

func (c *Client) apply(msg replication.DecodedMessage) {
	c.sceneMu.Lock()
	defer c.sceneMu.Unlock()

	switch msg.Kind {
	case replication.MsgSnapshot:
		if err := c.scene.LoadBinary(msg.Snapshot); err != nil {
			c.logger.Error("snapshot load failed", log.Err(err))
			return
		}
		select {
		case <-c.synced:
		default:
			close(c.synced)
		}
	case replication.MsgUpdate:
		for _, d := range msg.Deltas {
			c.scene.ApplyDelta(d)
		}
	case replication.MsgRemove:
		c.scene.ApplyRemovals(msg.Removals)
	}
}

// Close disconnects and stops the mirror.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.done)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.workerGroup.Wait()
	atomic.StoreInt32(&c.connected, 0)
	return nil
}
