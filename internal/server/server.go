package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
	"github.com/zeusync/arena/internal/session"
)

// Game is the inbound side of a session as seen by the gateway.
type Game interface {
	Connect(conn protocol.ConnectionID) error
	Disconnect(conn protocol.ConnectionID) error
	HandleInput(conn protocol.ConnectionID, input protocol.PlayerInput) error
	Tick() uint64
	Players() int
}

// outboundEvents are the bus event types relayed to clients.
var outboundEvents = []string{
	protocol.EventAssignPlayerID,
	protocol.EventSpawnEntity,
	protocol.EventPlayersSync,
	protocol.EventPlayerLeft,
}

// Server is the websocket gateway between clients and one game session.
type Server struct {
	cfg      config.ServerConfig
	game     Game
	events   bus.EventBus
	codec    protocol.Codec
	upgrader websocket.Upgrader
	logger   log.Log

	// Client management
	clients     sync.Map // map[protocol.ConnectionID]*client
	clientCount atomic.Int64
	workerGroup sync.WaitGroup

	subscriptions []bus.Subscription
	httpServer    *http.Server
	listener      net.Listener

	// Server state
	running atomic.Bool
	closed  atomic.Bool
}

// NewServer subscribes the gateway to the outbound game events on events.
func NewServer(cfg config.ServerConfig, game Game, events bus.EventBus, logger log.Log) (*Server, error) {
	codec, err := protocol.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		game:   game,
		events: events,
		codec:  codec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(log.String("component", "server")),
	}

	for _, event := range outboundEvents {
		sub, err := events.Subscribe(event, s.relay)
		if err != nil {
			s.unsubscribe()
			return nil, pkgerrors.Wrapf(err, "subscribe %s", event)
		}
		s.subscriptions = append(s.subscriptions, sub)
	}

	s.logger.Info("Server created",
		log.String("listen_addr", cfg.ListenAddr),
		log.String("codec", codec.Name()),
		log.Bool("binary", codec.Binary()))
	return s, nil
}

// Handler serves /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return pkgerrors.Wrap(errors.Join(ErrListenerFailed, err), s.cfg.ListenAddr)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down, closes every client and waits for the
// connection goroutines until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")

	var err error
	if s.httpServer != nil {
		if err = s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP shutdown incomplete", log.ErrorWithKey("shutdown_error", err))
		}
	}
	s.closeClients()

	done := make(chan struct{})
	go func() {
		s.workerGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if needed and detaches it from the event bus.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.running.Load() {
		_ = s.Stop(context.Background())
	}
	s.closeClients()
	s.unsubscribe()
	return nil
}

// ClientCount returns the number of open connections.
func (s *Server) ClientCount() int {
	return int(s.clientCount.Load())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err))
		return
	}

	c := newClient(conn, s.cfg, s.codec.Binary())
	s.workerGroup.Add(1)
	defer s.workerGroup.Done()

	s.clients.Store(c.id, c)
	s.clientCount.Add(1)
	s.logger.Info("Client connected",
		log.String("connection_id", string(c.id)),
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", s.clientCount.Load()))

	if err = s.game.Connect(c.id); err != nil {
		s.logger.Warn("Session refused connection", log.String("connection_id", string(c.id)), log.Error(err))
		s.unregister(c)
		return
	}

	go func() {
		if err := c.writePump(); err != nil && !c.isClosed() {
			s.logger.Debug("Write pump stopped", log.String("connection_id", string(c.id)), log.Error(err))
		}
		c.close()
	}()

	s.readPump(c)
	s.unregister(c)

	if err = s.game.Disconnect(c.id); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		s.logger.Warn("Failed to report disconnect", log.String("connection_id", string(c.id)), log.Error(err))
	}
}

func (s *Server) readPump(c *client) {
	c.prepareRead()
	for {
		frame, err := c.receive()
		if err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(pkgerrors.Cause(err), websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Connection read failed", log.String("connection_id", string(c.id)), log.Error(err))
			}
			return
		}
		s.handleFrame(c, frame)
	}
}

func (s *Server) handleFrame(c *client, frame []byte) {
	in, err := s.codec.Decode(frame)
	if err != nil {
		s.logger.Warn("Dropped undecodable frame", log.String("connection_id", string(c.id)), log.Error(err))
		return
	}

	switch in.Event {
	case protocol.EventPlayerInput:
		var input protocol.PlayerInput
		if err = in.Into(&input); err != nil {
			s.logger.Warn("Dropped malformed input", log.String("connection_id", string(c.id)), log.Error(err))
			return
		}
		if err = s.game.HandleInput(c.id, input); err != nil && !errors.Is(err, session.ErrInvalidInput) {
			s.logger.Debug("Input not accepted", log.String("connection_id", string(c.id)), log.Error(err))
		}
	default:
		s.logger.Warn("Ignored unknown event",
			log.String("connection_id", string(c.id)),
			log.String("event", in.Event))
	}
}

// relay encodes an outbound event once and routes it to its target, or to
// every client when it has none. It runs on the simulation goroutine and
// never blocks on a socket.
func (s *Server) relay(event bus.Event) error {
	frame, err := s.codec.Encode(event.Type(), event.Data())
	if err != nil {
		return pkgerrors.Wrapf(err, "encode %s", event.Type())
	}

	if target, ok := bus.Target(event); ok {
		value, found := s.clients.Load(protocol.ConnectionID(target))
		if !found {
			return pkgerrors.Wrapf(ErrClientNotFound, "%s for %s", event.Type(), target)
		}
		s.deliver(value.(*client), frame)
		return nil
	}

	s.clients.Range(func(_, value any) bool {
		s.deliver(value.(*client), frame)
		return true
	})
	return nil
}

func (s *Server) deliver(c *client, frame []byte) {
	err := c.enqueue(frame)
	if errors.Is(err, ErrSendBufferFull) {
		s.logger.Warn("Slow client disconnected", log.String("connection_id", string(c.id)))
		c.close()
	}
}

func (s *Server) unregister(c *client) {
	if _, loaded := s.clients.LoadAndDelete(c.id); !loaded {
		return
	}
	s.clientCount.Add(-1)
	c.close()
	s.logger.Info("Client disconnected",
		log.String("connection_id", string(c.id)),
		log.Uint64("messages_sent", c.messagesSent.Load()),
		log.Uint64("messages_received", c.messagesReceived.Load()),
		log.Duration("connected_for", time.Since(c.connectedAt)),
		log.Int64("total_clients", s.clientCount.Load()))
}

func (s *Server) closeClients() {
	s.clients.Range(func(_, value any) bool {
		value.(*client).close()
		return true
	})
}

func (s *Server) unsubscribe() {
	for _, sub := range s.subscriptions {
		_ = s.events.Unsubscribe(sub)
	}
	s.subscriptions = nil
}
