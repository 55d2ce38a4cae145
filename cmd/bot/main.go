package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/physics"
	"github.com/zeusync/arena/internal/core/protocol"
	"github.com/zeusync/arena/pkg/concurrent"
	"github.com/zeusync/arena/pkg/sequence"
	"github.com/zeusync/arena/sdk/go/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	url := flag.String("url", "ws://localhost:8080/ws", "arena websocket endpoint")
	codec := flag.String("codec", "json", "wire codec: json or msgpack")
	bots := flag.Int("bots", 8, "number of concurrent bots")
	duration := flag.Duration("duration", 30*time.Second, "how long each bot plays")
	inputEvery := flag.Duration("input-interval", 100*time.Millisecond, "time between inputs")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := log.NewWithConfig(log.Config{Level: log.ParseLevel(*level), Format: "console"})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	ids := make([]int, *bots)
	for i := range ids {
		ids[i] = i + 1
	}

	err := concurrent.ForEach(ctx, sequence.From(ids), 0, func(ctx context.Context, id int) error {
		return play(ctx, id, *url, *codec, *inputEvery, logger)
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// play connects one bot and steers it randomly until ctx ends.
func play(ctx context.Context, id int, url, codec string, every time.Duration, logger log.Log) error {
	botLogger := logger.With(log.Int("bot", id))
	cfg := client.DefaultClientConfig()
	cfg.ServerURL = url
	cfg.Codec = codec
	cfg.Logger = botLogger

	c, err := client.NewClient(cfg, client.Handlers{})
	if err != nil {
		return err
	}
	if err = c.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	rng := rand.New(rand.NewPCG(uint64(id), uint64(time.Now().UnixNano())))
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			botLogger.Info("Bot finished",
				log.Uint64("entity_id", uint64(c.PlayerID())),
				log.Uint64("syncs", c.SyncsReceived()))
			return nil
		case <-c.Done():
			return fmt.Errorf("bot %d: connection closed by server", id)
		case <-ticker.C:
			angle := rng.Float64() * 2 * math.Pi
			input := protocol.PlayerInput{
				MoveInput: physics.V(math.Cos(angle), math.Sin(angle)),
				LookRot:   angle,
			}
			if err = c.SendInput(input); err != nil {
				return err
			}
		}
	}
}
