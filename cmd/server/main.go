package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/server"
	"github.com/zeusync/arena/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	addr := flag.String("addr", "", "listen address, overrides the config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	logger := log.NewWithConfig(log.Config{
		Level:  log.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.New()
	sess, err := session.New(cfg.Game, events, logger)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer sess.Close()

	srv, err := server.NewServer(cfg.Server, sess, events, logger)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, server.ErrServerNotRunning) {
			return err
		}
		return nil
	})

	logger.Info("Arena server running",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.String("codec", cfg.Server.Codec))

	err = g.Wait()
	logger.Info("Arena server stopped", log.Uint64("ticks", sess.Tick()))
	return err
}
