// Package client is a Go client for the arena websocket gateway. It is used
// by bots and integration tests.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
)

// Client is one player connection to an arena server.
type Client struct {
	conn  *websocket.Conn
	codec protocol.Codec

	playerID atomic.Uint64

	// Event handlers
	handlers     Handlers
	eventHandler func(Event)

	// Lifecycle
	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	writeMu   sync.Mutex

	config Config
	logger log.Log

	// Metrics
	messagesReceived atomic.Uint64
	syncsReceived    atomic.Uint64
}

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL      string
	Codec          string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Logger         log.Log
}

func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		Codec:          "json",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// Handlers receive game events on the client's read goroutine. Any of them
// may be nil. The snapshot passed to OnSync is only valid during the call.
type Handlers struct {
	OnAssign     func(id ecs.EntityID)
	OnSpawn      func(spawn protocol.SpawnEntity)
	OnSync       func(sync *protocol.PlayersSync)
	OnPlayerLeft func(left protocol.PlayerLeft)
}

// EventType represents connection lifecycle events.
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Error     error
}

func NewClient(config Config, handlers Handlers) (*Client, error) {
	codec, err := protocol.NewCodec(config.Codec)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if config.ServerURL == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "server url is empty")
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		codec:    codec,
		handlers: handlers,
		done:     make(chan struct{}),
		config:   config,
		logger:   logger.With(log.String("component", "client")),
	}, nil
}

// OnEvent registers a callback for lifecycle events.
func (c *Client) OnEvent(fn func(Event)) {
	c.eventHandler = fn
}

// Connect dials the server and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.ServerURL, nil)
	if err != nil {
		c.logger.Error("Failed to connect to server", log.String("url", c.config.ServerURL), log.Error(err))
		return errors.Wrapf(err, "dial %s", c.config.ServerURL)
	}
	c.conn = conn
	c.connected.Store(true)
	c.logger.Info("Connected to server", log.String("remote_addr", conn.RemoteAddr().String()))
	c.emit(Event{Type: EventTypeConnected})

	go c.readLoop()
	return nil
}

// SendInput transmits the latest movement intent and facing.
func (c *Client) SendInput(input protocol.PlayerInput) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	frame, err := c.codec.Encode(protocol.EventPlayerInput, input)
	if err != nil {
		return err
	}
	messageType := websocket.TextMessage
	if c.codec.Binary() {
		messageType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err = c.conn.WriteMessage(messageType, frame); err != nil {
		return errors.Wrap(err, "failed to write input")
	}
	return nil
}

// PlayerID returns the entity assigned by the server, or zero before the
// assignment arrives.
func (c *Client) PlayerID() ecs.EntityID {
	return ecs.EntityID(c.playerID.Load())
}

// SyncsReceived returns how many snapshots have been handled.
func (c *Client) SyncsReceived() uint64 {
	return c.syncsReceived.Load()
}

// Done is closed when the read loop ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.conn == nil {
		close(c.done)
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer func() {
		c.connected.Store(false)
		c.emit(Event{Type: EventTypeDisconnected})
		c.logger.Info("Disconnected from server", log.Uint64("messages_received", c.messagesReceived.Load()))
		close(c.done)
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.emit(Event{Type: EventTypeError, Error: errors.Wrap(err, "failed to read message")})
			}
			return
		}
		c.messagesReceived.Add(1)
		if err = c.dispatch(frame); err != nil {
			c.logger.Warn("Dropped server frame", log.Error(err))
		}
	}
}

func (c *Client) dispatch(frame []byte) error {
	in, err := c.codec.Decode(frame)
	if err != nil {
		return err
	}

	switch in.Event {
	case protocol.EventAssignPlayerID:
		var id ecs.EntityID
		if err = in.Into(&id); err != nil {
			return err
		}
		c.playerID.Store(uint64(id))
		if c.handlers.OnAssign != nil {
			c.handlers.OnAssign(id)
		}
	case protocol.EventSpawnEntity:
		var spawn protocol.SpawnEntity
		if err = in.Into(&spawn); err != nil {
			return err
		}
		if c.handlers.OnSpawn != nil {
			c.handlers.OnSpawn(spawn)
		}
	case protocol.EventPlayersSync:
		var snapshot protocol.PlayersSync
		if err = in.Into(&snapshot); err != nil {
			return err
		}
		c.syncsReceived.Add(1)
		if c.handlers.OnSync != nil {
			c.handlers.OnSync(&snapshot)
		}
	case protocol.EventPlayerLeft:
		var left protocol.PlayerLeft
		if err = in.Into(&left); err != nil {
			return err
		}
		if c.handlers.OnPlayerLeft != nil {
			c.handlers.OnPlayerLeft(left)
		}
	default:
		c.logger.Debug("Ignored unknown event", log.String("event", in.Event))
	}
	return nil
}

func (c *Client) emit(event Event) {
	if c.eventHandler == nil {
		return
	}
	event.Timestamp = time.Now()
	c.eventHandler(event)
}
