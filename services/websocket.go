package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by Send after the connection has been closed,
// and is the close cause when Close was called locally.
var ErrConnClosed = errors.New("connection closed")

const (
	defaultKeepalive    = 15 * time.Second
	defaultWriteTimeout = 5 * time.Second
	sendBuffer          = 256
)

// wsConn is the part of *websocket.Conn a Conn drives.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one leg of a bridged call. It owns a reader goroutine that
// publishes text frames on Incoming, and a single writer goroutine that
// writes queued frames strictly in order and pings the peer on a fixed
// interval. Close is idempotent and stops both.
type Conn struct {
	ID string

	ws           wsConn
	keepalive    time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	send     chan []byte
	incoming chan []byte
	done     chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// NewConn wraps an established websocket. Call Start to begin pumping.
func NewConn(id string, ws wsConn, keepalive time.Duration, logger *slog.Logger) *Conn {
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		ID:           id,
		ws:           ws,
		keepalive:    keepalive,
		writeTimeout: defaultWriteTimeout,
		logger:       logger.With("leg", id),
		send:         make(chan []byte, sendBuffer),
		incoming:     make(chan []byte),
		done:         make(chan struct{}),
	}
}

// Start launches the read and write pumps. Calls after the first are no-ops.
func (c *Conn) Start() {
	c.startOnce.Do(func() {
		go c.readPump()
		go c.writePump()
	})
}

// Incoming yields inbound text frames. It is closed once the connection is
// gone for any reason.
func (c *Conn) Incoming() <-chan []byte {
	return c.incoming
}

// Done is closed when the connection starts closing.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection closed, nil while it is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send marshals v and queues it behind every previously sent frame.
func (c *Conn) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(b)
}

// SendRaw queues an already encoded frame.
func (c *Conn) SendRaw(b []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrConnClosed
	}
}

// Close is safe to call more than once.
func (c *Conn) Close() {
	c.closeWithError(ErrConnClosed)
}

func (c *Conn) closeWithError(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()
		close(c.done)

		deadline := time.Now().Add(c.writeTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()

		if IsNormalClose(cause) {
			c.logger.Debug("connection closed", "cause", cause)
		} else {
			c.logger.Warn("connection closed", "cause", cause)
		}
	})
}

func (c *Conn) readPump() {
	defer close(c.incoming)
	for {
		messageType, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWithError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.closeWithError(err)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.closeWithError(err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.writeTimeout)); err != nil {
				c.closeWithError(err)
				return
			}
		}
	}
}

// IsNormalClose reports whether err is an orderly shutdown rather than a fault.
func IsNormalClose(err error) bool {
	if err == nil || errors.Is(err, ErrConnClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
