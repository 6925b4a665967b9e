package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var ErrNotConnected = errors.New("ws not connected")

type Options struct {
	DialTimeout  time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
	CloseTimeout time.Duration
	ReadLimit    int64
}

// Client owns a single streaming session at a time. Reconnect policy belongs to the caller.
type Client struct {
	url  string
	opts Options
	log  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(url string, opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{url: url, opts: opts, log: log}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	dialCtx := ctx
	if c.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
	}
	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return err
	}
	if c.opts.ReadLimit > 0 {
		conn.SetReadLimit(c.opts.ReadLimit)
	}
	c.conn = conn
	return nil
}

func (c *Client) Subscribe(ctx context.Context, sub any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return writeJSON(ctx, conn, sub)
}

// Run reads until the session ends and always leaves the client disconnected.
// The returned error is never nil; it describes why the session ended.
func (c *Client) Run(ctx context.Context, handler func([]byte)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	defer c.Close()

	pingCtx, cancel := context.WithCancel(ctx)
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		c.pingLoop(pingCtx, conn)
	}()
	err := c.readLoop(ctx, conn, handler)
	cancel()
	<-pingDone
	c.logReadLoopError(err)
	return err
}

// Close performs the close handshake, bounded by CloseTimeout.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	closeWithTimeout(conn, c.opts.CloseTimeout)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, handler func([]byte)) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler != nil {
			handler(data)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	interval := c.opts.PingInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(ctx, conn); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn("ws keepalive ping failed", zap.Error(err))
				_ = conn.CloseNow()
				return
			}
		}
	}
}

func (c *Client) ping(ctx context.Context, conn *websocket.Conn) error {
	if c.opts.PingTimeout <= 0 {
		return conn.Ping(ctx)
	}
	pingCtx, cancel := context.WithTimeout(ctx, c.opts.PingTimeout)
	defer cancel()
	return conn.Ping(pingCtx)
}

func (c *Client) logReadLoopError(err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			c.log.Info("ws read loop ended", zap.Int("status", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
			return
		}
	}
	c.log.Warn("ws read loop ended", zap.Error(err))
}

func closeWithTimeout(conn *websocket.Conn, timeout time.Duration) {
	if timeout <= 0 {
		_ = conn.CloseNow()
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		_ = conn.CloseNow()
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
