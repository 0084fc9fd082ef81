package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/signal-bridge/internal/config"
	"github.com/rickgao/signal-bridge/internal/connection"
	"github.com/rickgao/signal-bridge/internal/producer"
	"github.com/rickgao/signal-bridge/internal/store"
	"github.com/rickgao/signal-bridge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	relayURL := flag.String("relay", "", "relay websocket URL (overrides config and RELAY_URL)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config and SQLITE_PATH)")
	workers := flag.Int("workers", 0, "concurrent store queries")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadProducer(*configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *relayURL != "" {
		cfg.Relay.URL = *relayURL
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting producer",
		"version", version.Version,
		"commit", version.Commit,
		"relay", cfg.Relay.URL,
		"store", cfg.Store.Driver,
	)

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the local store read-only
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := store.Open(openCtx, cfg.Store, cfg.Workers, logger)
	cancel()
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	logger.Info("store opened", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	p := producer.New(producer.Config{
		URL:         cfg.Relay.URL,
		Token:       cfg.Relay.Token,
		Workers:     cfg.Workers,
		AuthTimeout: cfg.AuthTimeout,
		BaseDelay:   cfg.Reconnect.BaseDelay,
		MaxDelay:    cfg.Reconnect.MaxDelay,
		Connection: connection.ClientConfig{
			PingInterval: cfg.Relay.PingInterval,
			PingTimeout:  cfg.Relay.PingTimeout,
			WriteTimeout: cfg.Relay.WriteTimeout,
		},
	}, st, logger)

	if err := p.Run(ctx); err != nil {
		logger.Error("producer stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("producer stopped", "handled", p.Handled())
}
