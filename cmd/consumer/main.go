package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/signal-bridge/internal/config"
	"github.com/rickgao/signal-bridge/internal/consumer"
	"github.com/rickgao/signal-bridge/internal/model"
	"github.com/rickgao/signal-bridge/internal/protocol"
	"github.com/rickgao/signal-bridge/internal/version"
)

func main() {
	relayURL := flag.String("relay", envOr(config.EnvRelayURL, config.DefaultRelayURL), "relay websocket URL")
	token := flag.String("token", os.Getenv(config.EnvConsumerToken), "consumer token (default CONSUMER_TOKEN)")
	resource := flag.String("resource", string(model.ResourceProbabilities), "resource to query")
	limit := flag.Int("limit", protocol.DefaultLimit, "max rows to return")
	timeout := flag.Duration("timeout", 15*time.Second, "overall deadline")
	logLevel := flag.String("log-level", "warn", "debug, info, warn or error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *token == "" {
		fmt.Fprintln(os.Stderr, "a consumer token is required (-token or CONSUMER_TOKEN)")
		os.Exit(2)
	}

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c, err := consumer.Dial(ctx, consumer.Config{URL: *relayURL, Token: *token, RequestTimeout: *timeout}, logger)
	if err != nil {
		logger.Error("failed to connect", "relay", *relayURL, "error", err)
		os.Exit(1)
	}
	defer c.Close()

	resp, err := c.Get(ctx, *resource, protocol.WithLimit(*limit))
	if err != nil {
		logger.Error("get failed", "resource", *resource, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Error("failed to print response", "error", err)
		os.Exit(1)
	}
	if !resp.OK() {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
