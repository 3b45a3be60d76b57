// Package ipc implements the retrying unix-socket client that carries the
// control channel to the controller.
package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"wandb-canvas/log"
	"wandb-canvas/protocol"
)

// ErrRetriesExhausted is returned once every connection attempt has failed.
var ErrRetriesExhausted = errors.New("connection retries exhausted")

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("ipc client is closed")

// retrySchedule is the backoff policy for ConnectWithRetry. Delays are
// non-decreasing and capped.
type retrySchedule struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	maxAttempts  int
	dialTimeout  time.Duration
}

var defaultSchedule = retrySchedule{
	initialDelay: 250 * time.Millisecond,
	maxDelay:     2 * time.Second,
	maxAttempts:  20,
	dialTimeout:  2 * time.Second,
}

// Handlers are the observable side channels of a Client. A disconnect never
// triggers an automatic reconnect; that decision belongs to the caller.
type Handlers struct {
	OnMessage    func(msg *protocol.Message)
	OnDisconnect func()
	OnError      func(err error)
}

// Client is a connected control channel. Frames are newline-delimited JSON,
// written atomically per Send.
type Client struct {
	conn     net.Conn
	handlers Handlers

	mu     sync.Mutex
	closed bool
}

// ConnectWithRetry dials the unix socket at socketPath, retrying with capped
// backoff until it connects, the attempt budget runs out, or ctx is
// cancelled.
func ConnectWithRetry(ctx context.Context, socketPath string, handlers Handlers) (*Client, error) {
	return connectWithRetry(ctx, socketPath, handlers, defaultSchedule)
}

func connectWithRetry(ctx context.Context, socketPath string, handlers Handlers, sched retrySchedule) (*Client, error) {
	delay := sched.initialDelay
	var lastErr error

	for attempt := 1; attempt <= sched.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * 1.5)
			if delay > sched.maxDelay {
				delay = sched.maxDelay
			}
		}

		conn, err := net.DialTimeout("unix", socketPath, sched.dialTimeout)
		if err != nil {
			lastErr = err
			log.InfoLog.Printf("connect attempt %d/%d to %s failed: %v", attempt, sched.maxAttempts, socketPath, err)
			continue
		}

		log.InfoLog.Printf("connected to %s on attempt %d", socketPath, attempt)
		client := &Client{conn: conn, handlers: handlers}
		go client.readLoop()
		return client, nil
	}

	return nil, fmt.Errorf("%w: %d attempts to %s, last error: %v", ErrRetriesExhausted, sched.maxAttempts, socketPath, lastErr)
}

// Send serializes and writes one message. Writes are serialized so frames
// never interleave.
func (c *Client) Send(msg *protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	log.ProtocolTrace("send", "%s", msg.Type)
	return nil
}

// Close tears the connection down. Idempotent; a local Close does not fire
// OnDisconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

// readLoop dispatches complete frames until the connection goes away. A
// malformed frame is reported through OnError and skipped; the connection
// stays open.
func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	// Terminal snapshots can make frames large
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			log.WarningLog.Printf("dropping bad frame: %v", err)
			if c.handlers.OnError != nil {
				c.handlers.OnError(err)
			}
			continue
		}

		log.ProtocolTrace("recv", "%s", msg.Type)
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg)
		}
	}

	scanErr := scanner.Err()

	// Remote side went away, unless Close was called locally
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	c.mu.Unlock()

	if wasClosed {
		return
	}
	_ = c.conn.Close()

	// A non-EOF read error (an oversized frame, a torn connection) is
	// reported before the disconnect it causes
	if scanErr != nil {
		log.WarningLog.Printf("read error on control channel: %v", scanErr)
		if c.handlers.OnError != nil {
			c.handlers.OnError(scanErr)
		}
	}

	log.InfoLog.Printf("controller disconnected")
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect()
	}
}
