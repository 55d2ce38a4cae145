package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/protocol"
)

// client is one websocket connection. The read pump runs on the HTTP handler
// goroutine and the write pump owns every write to conn.
type client struct {
	id          protocol.ConnectionID
	conn        *websocket.Conn
	cfg         config.ServerConfig
	messageType int
	connectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
}

func newClient(conn *websocket.Conn, cfg config.ServerConfig, binary bool) *client {
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}
	return &client{
		id:          protocol.GenerateConnectionID(),
		conn:        conn,
		cfg:         cfg,
		messageType: messageType,
		connectedAt: time.Now(),
		send:        make(chan []byte, cfg.SendBuffer),
		done:        make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking.
func (c *client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// receive blocks for the next data frame. The read deadline only moves
// forward on pong.
func (c *client) receive() ([]byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
		return nil, errors.Errorf("unsupported message type %d", messageType)
	}
	c.messagesReceived.Add(1)
	c.bytesReceived.Add(uint64(len(data)))
	return data, nil
}

func (c *client) prepareRead() {
	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	if c.cfg.PongTimeout <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})
}

// writePump drains the send buffer and keeps the connection alive with pings
// until the client closes.
func (c *client) writePump() error {
	ping := time.NewTicker(c.pingPeriod())
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case frame := <-c.send:
			if err := c.write(c.messageType, frame); err != nil {
				return err
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	if messageType != websocket.PingMessage {
		c.messagesSent.Add(1)
		c.bytesSent.Add(uint64(len(data)))
	}
	return nil
}

func (c *client) pingPeriod() time.Duration {
	period := c.cfg.PongTimeout * 9 / 10
	if period <= 0 {
		period = 54 * time.Second
	}
	return period
}
