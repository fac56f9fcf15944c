package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/drivescene/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendQueueSize = 10_000
	ackQueueSize  = 16
	maxRedials    = 10
	maxBackoff    = 30 * time.Second
	writeWait     = 10 * time.Second
	ackTimeout    = 10 * time.Second
	pingPeriod    = 20 * time.Second
)

var errClosed = errors.New("connection closed")

// connection owns one live socket at a time. All writes after dial go
// through writeLoop; a broken socket is replaced by redial.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	closed bool

	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}

	target         *url.URL
	initialBackoff time.Duration

	// resumeMsg is the start_episode of the open episode, written first on
	// every new socket.
	resumeMsg []byte
	dropped   atomic.Int64

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:         make(chan []byte, sendQueueSize),
		ackCh:          make(chan streaming.AckMessage, ackQueueSize),
		done:           make(chan struct{}),
		initialBackoff: time.Second,
		logger:         logger,
	}
}

// dial resolves the server URL, connects once and starts the loops.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	c.target = u

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.attach(conn)
	return nil
}

// attach makes conn the live socket and starts its loops. It reports false
// when the connection was closed meanwhile.
func (c *connection) attach(conn *ws.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
	return true
}

func writeFrame(conn *ws.Conn, msgType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(msgType, data)
}

// writeLoop drains sendCh onto conn and keeps it alive with pings.
func (c *connection) writeLoop(conn *ws.Conn) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			err = writeFrame(conn, ws.TextMessage, data)
		case <-ping.C:
			err = writeFrame(conn, ws.PingMessage, nil)
		}
		if err != nil {
			c.logger.Warn("WebSocket write error", "error", err)
			go c.redial(conn)
			return
		}
	}
}

// readLoop routes acks to ackCh; anything else is ignored.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.redial(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring server message", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack queue full, dropping", "for", ack.For)
		}
	}
}

// redial replaces broken with a new socket, backing off exponentially.
// Only the first caller for a given socket does the work.
func (c *connection) redial(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.initialBackoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		conn, _, err := ws.DefaultDialer.Dial(c.target.String(), nil)
		if err != nil {
			c.logger.Warn("Redial failed", "attempt", attempt, "error", err)
			continue
		}
		if resume := c.resumeMessage(); resume != nil {
			if err := writeFrame(conn, ws.TextMessage, resume); err != nil {
				c.logger.Warn("Failed to resume episode after redial", "error", err)
				_ = conn.Close()
				continue
			}
		}
		if c.attach(conn) {
			c.logger.Info("WebSocket reconnected", "attempt", attempt)
		}
		return
	}

	c.logger.Error("Giving up on trace server", "attempts", maxRedials)
}

func (c *connection) resumeMessage() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeMsg
}

// setResumeMessage sets the message written first on a new socket; nil
// clears it.
func (c *connection) setResumeMessage(data []byte) {
	c.mu.Lock()
	c.resumeMsg = data
	c.mu.Unlock()
}

// send queues data without blocking. A full queue drops it.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("WebSocket send queue full, dropping messages", "dropped", n)
		}
	}
}

// pending is the number of queued, unwritten messages.
func (c *connection) pending() int {
	return len(c.sendCh)
}

// sendAndWait queues data and waits for the server's ack of ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	select {
	case <-c.done:
		return fmt.Errorf("waiting for ack of %q: %w", ackFor, errClosed)
	default:
	}
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, errClosed)
		}
	}
}

// close sends a close frame and stops the loops. Safe to call twice.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
