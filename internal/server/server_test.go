package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/physics"
	"github.com/zeusync/arena/internal/core/protocol"
	"github.com/zeusync/arena/internal/session"
)

type fakeGame struct {
	mu           sync.Mutex
	connected    []protocol.ConnectionID
	disconnected []protocol.ConnectionID
	inputs       []protocol.PlayerInput
}

func (g *fakeGame) Connect(conn protocol.ConnectionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = append(g.connected, conn)
	return nil
}

func (g *fakeGame) Disconnect(conn protocol.ConnectionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnected = append(g.disconnected, conn)
	return nil
}

func (g *fakeGame) HandleInput(_ protocol.ConnectionID, input protocol.PlayerInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, input)
	return nil
}

func (g *fakeGame) Tick() uint64 { return 42 }
func (g *fakeGame) Players() int { return 1 }

func (g *fakeGame) snapshot() (connected, disconnected []protocol.ConnectionID, inputs []protocol.PlayerInput) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append(connected, g.connected...), append(disconnected, g.disconnected...), append(inputs, g.inputs...)
}

func testServerConfig(codec string) config.ServerConfig {
	cfg := config.Default().Server
	cfg.Codec = codec
	cfg.SendBuffer = 1024
	return cfg
}

func startTestServer(t *testing.T, cfg config.ServerConfig, game Game, events bus.EventBus) (*Server, string) {
	t.Helper()
	srv, err := NewServer(cfg, game, events, nil)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Close()
		hs.Close()
	})
	return srv, hs.URL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, codec protocol.Codec) *protocol.Inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	in, err := codec.Decode(frame)
	require.NoError(t, err)
	return in
}

// readUntil skips frames until one carries event.
func readUntil(t *testing.T, conn *websocket.Conn, codec protocol.Codec, event string) *protocol.Inbound {
	t.Helper()
	for {
		in := readEvent(t, conn, codec)
		if in.Event == event {
			return in
		}
	}
}

func TestGatewayForwardsInputAndDisconnect(t *testing.T) {
	game := &fakeGame{}
	srv, url := startTestServer(t, testServerConfig("json"), game, bus.New())
	conn := dial(t, url)

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	frame, err := protocol.JSONCodec{}.Encode(protocol.EventPlayerInput, protocol.PlayerInput{MoveInput: physics.V(1, 0), LookRot: 3})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"chat","data":{}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	require.Eventually(t, func() bool {
		_, _, inputs := game.snapshot()
		return len(inputs) == 1
	}, time.Second, 5*time.Millisecond)
	_, _, inputs := game.snapshot()
	assert.Equal(t, protocol.PlayerInput{MoveInput: physics.V(1, 0), LookRot: 3}, inputs[0])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		_, disconnected, _ := game.snapshot()
		return len(disconnected) == 1
	}, time.Second, 5*time.Millisecond)

	connected, disconnected, _ := game.snapshot()
	assert.Equal(t, connected, disconnected)
	assert.Zero(t, srv.ClientCount())
}

func TestGatewayRoutesOutboundEvents(t *testing.T) {
	game := &fakeGame{}
	events := bus.New()
	srv, url := startTestServer(t, testServerConfig("json"), game, events)
	connectedCount := func() int {
		connected, _, _ := game.snapshot()
		return len(connected)
	}
	first := dial(t, url)
	require.Eventually(t, func() bool { return connectedCount() == 1 }, time.Second, 5*time.Millisecond)
	second := dial(t, url)
	require.Eventually(t, func() bool { return connectedCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, srv.ClientCount())

	connected, _, _ := game.snapshot()
	require.Len(t, connected, 2)

	require.NoError(t, events.Publish(bus.NewTargetedEvent(protocol.EventAssignPlayerID, "test", string(connected[0]), ecs.EntityID(7))))
	require.NoError(t, events.Publish(bus.NewEvent(protocol.EventPlayerLeft, "test", protocol.PlayerLeft{EntityID: 9, ConnectionID: "gone"})))

	in := readEvent(t, first, protocol.JSONCodec{})
	assert.Equal(t, protocol.EventAssignPlayerID, in.Event)
	var id ecs.EntityID
	require.NoError(t, in.Into(&id))
	assert.Equal(t, ecs.EntityID(7), id)

	for _, conn := range []*websocket.Conn{first, second} {
		in = readEvent(t, conn, protocol.JSONCodec{})
		assert.Equal(t, protocol.EventPlayerLeft, in.Event)
		var left protocol.PlayerLeft
		require.NoError(t, in.Into(&left))
		assert.Equal(t, ecs.EntityID(9), left.EntityID)
	}

	err := events.Publish(bus.NewTargetedEvent(protocol.EventAssignPlayerID, "test", "nobody", ecs.EntityID(1)))
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestHealthz(t *testing.T) {
	_, url := startTestServer(t, testServerConfig("json"), &fakeGame{}, bus.New())

	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, healthResponse{Status: "ok", Clients: 0, Players: 1, Tick: 42}, health)
}

func TestNewServerRejectsUnknownCodec(t *testing.T) {
	_, err := NewServer(testServerConfig("xml"), &fakeGame{}, bus.New(), nil)
	assert.ErrorIs(t, err, protocol.ErrUnknownCodec)
}

func TestStartStop(t *testing.T) {
	cfg := testServerConfig("json")
	cfg.ListenAddr = "127.0.0.1:0"
	srv, err := NewServer(cfg, &fakeGame{}, bus.New(), nil)
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)
	require.NotNil(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)
	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)
}

func TestEndToEndWithSession(t *testing.T) {
	for _, codecName := range []string{"json", "msgpack"} {
		t.Run(codecName, func(t *testing.T) {
			codec, err := protocol.NewCodec(codecName)
			require.NoError(t, err)

			gameCfg := config.Default().Game
			gameCfg.Seed = 3
			gameCfg.Asteroids.Count = 2
			events := bus.New()
			sess, err := session.New(gameCfg, events, nil)
			require.NoError(t, err)
			_, url := startTestServer(t, testServerConfig(codecName), sess, events)
			conn := dial(t, url)

			require.Eventually(t, func() bool {
				sess.Step(1.0 / 60)
				return sess.Players() == 1
			}, 2*time.Second, 5*time.Millisecond)

			// snapshots broadcast before the join was applied may come first
			in := readUntil(t, conn, codec, protocol.EventAssignPlayerID)
			var player ecs.EntityID
			require.NoError(t, in.Into(&player))

			// two asteroid catch-ups, then the player's own spawn
			for range 3 {
				in = readEvent(t, conn, codec)
				assert.Equal(t, protocol.EventSpawnEntity, in.Event)
			}

			frame, err := codec.Encode(protocol.EventPlayerInput, protocol.PlayerInput{MoveInput: physics.V(0, 1)})
			require.NoError(t, err)
			messageType := websocket.TextMessage
			if codec.Binary() {
				messageType = websocket.BinaryMessage
			}
			require.NoError(t, conn.WriteMessage(messageType, frame))

			require.Eventually(t, func() bool {
				sess.Step(1.0 / 60)
				return sess.World().MustRigidBody(player).Acceleration == physics.V(0, 1000)
			}, 2*time.Second, 5*time.Millisecond)

			in = readUntil(t, conn, codec, protocol.EventPlayersSync)
			var snapshot protocol.PlayersSync
			require.NoError(t, in.Into(&snapshot))
			assert.Len(t, snapshot.Entities, 3)
		})
	}
}

func TestGatewayDropsBadFramesAndKeepsConnection(t *testing.T) {
	tests := []struct {
		name   string
		codec  string
		frames func(t *testing.T, codec protocol.Codec) [][]byte
	}{
		{
			name:  "json",
			codec: "json",
			frames: func(*testing.T, protocol.Codec) [][]byte {
				return [][]byte{
					[]byte(`garbage`),
					[]byte(`{"data":{}}`),
					[]byte(`{"event":"chat","data":{"text":"hi"}}`),
					[]byte(`{"event":"playerInput","data":"left"}`),
				}
			},
		},
		{
			name:  "msgpack",
			codec: "msgpack",
			frames: func(t *testing.T, codec protocol.Codec) [][]byte {
				unknown, err := codec.Encode("chat", map[string]string{"text": "hi"})
				require.NoError(t, err)
				malformed, err := codec.Encode(protocol.EventPlayerInput, "left")
				require.NoError(t, err)
				return [][]byte{{0xc1}, unknown, malformed}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := protocol.NewCodec(tt.codec)
			require.NoError(t, err)
			messageType := websocket.TextMessage
			if codec.Binary() {
				messageType = websocket.BinaryMessage
			}

			game := &fakeGame{}
			srv, url := startTestServer(t, testServerConfig(tt.codec), game, bus.New())
			conn := dial(t, url)
			require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

			for _, frame := range tt.frames(t, codec) {
				require.NoError(t, conn.WriteMessage(messageType, frame))
			}
			valid, err := codec.Encode(protocol.EventPlayerInput, protocol.PlayerInput{MoveInput: physics.V(0, -1)})
			require.NoError(t, err)
			require.NoError(t, conn.WriteMessage(messageType, valid))

			require.Eventually(t, func() bool {
				_, _, inputs := game.snapshot()
				return len(inputs) == 1
			}, time.Second, 5*time.Millisecond)
			_, disconnected, inputs := game.snapshot()
			assert.Equal(t, physics.V(0, -1), inputs[0].MoveInput)
			assert.Empty(t, disconnected)
			assert.Equal(t, 1, srv.ClientCount())
		})
	}
}

func TestGatewayEvictsSlowClient(t *testing.T) {
	cfg := testServerConfig("json")
	cfg.SendBuffer = 1
	game := &fakeGame{}
	events := bus.New()
	srv, url := startTestServer(t, cfg, game, events)

	// never reads, so its socket and send buffer fill up
	dial(t, url)
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	payload := protocol.PlayerLeft{EntityID: 1, ConnectionID: protocol.ConnectionID(strings.Repeat("x", 64<<10))}
	for i := 0; i < 10000 && srv.ClientCount() > 0; i++ {
		require.NoError(t, events.Publish(bus.NewEvent(protocol.EventPlayerLeft, "test", payload)))
	}

	require.Eventually(t, func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, disconnected, _ := game.snapshot()
		return len(disconnected) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestGatewayEnforcesMaxMessageSize(t *testing.T) {
	cfg := testServerConfig("json")
	cfg.MaxMessageSize = 128
	game := &fakeGame{}
	srv, url := startTestServer(t, cfg, game, bus.New())
	conn := dial(t, url)
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	small, err := protocol.JSONCodec{}.Encode(protocol.EventPlayerInput, protocol.PlayerInput{MoveInput: physics.V(1, 1)})
	require.NoError(t, err)
	require.Less(t, len(small), 128)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, small))
	require.Eventually(t, func() bool {
		_, _, inputs := game.snapshot()
		return len(inputs) == 1
	}, time.Second, 5*time.Millisecond)

	oversized := `{"event":"playerInput","data":{"moveInput":{"x":1,"y":1},"pad":"` + strings.Repeat("x", 512) + `"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(oversized)))

	require.Eventually(t, func() bool {
		_, disconnected, _ := game.snapshot()
		return len(disconnected) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, srv.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	_, _, inputs := game.snapshot()
	assert.Len(t, inputs, 1)
}
