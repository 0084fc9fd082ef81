package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/signal-bridge/internal/config"
	"github.com/rickgao/signal-bridge/internal/relay"
	"github.com/rickgao/signal-bridge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	port := flag.Int("port", 0, "listen port (overrides config and PORT)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadRelay(*configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
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

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"port", cfg.Server.Port,
		"request_timeout", cfg.Requests.Timeout,
		"metrics", cfg.Metrics.On(),
	)

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := relay.NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to create relay", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("relay stopped")
}
