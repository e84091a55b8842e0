// Package main provides the pairing-api server.
//
// This is a standalone REST API server that analyses crew pairing documents
// and stores the results in SQLite or PostgreSQL, optionally mirroring
// duty-day facts to ClickHouse and publishing parse progress over NATS.
//
// Usage:
//
//	pairing-api [options]
//
// Options:
//
//	-config PATH        YAML configuration file (optional)
//	-port N             HTTP port (overrides config, env: PORT)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET  /api/v1/health
//	POST /api/v1/analyses?source=NAME         body: raw document text
//	GET  /api/v1/analyses?base=&fleet=&bid_period=&limit=&offset=
//	GET  /api/v1/analyses/{id}
//	GET  /api/v1/analyses/{id}/pairings?edw=only&mode=any&min_hours=10
//	GET  /api/v1/analyses/{id}/distribution?width=1&exclude_turns=true
//	GET  /api/v1/analytics/edw-share?bid_period=2601   (ClickHouse only)
//	GET  /metrics
//
// Authentication:
//
//	When auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairing_analyzer/internal/api"
	"pairing_analyzer/internal/config"
	"pairing_analyzer/internal/logger"
	"pairing_analyzer/internal/pipeline"
	"pairing_analyzer/internal/progress"
	"pairing_analyzer/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP port for API server (overrides config)")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *authEnabled {
		cfg.Server.AuthEnabled = true
	}
	if *apiKeys != "" {
		cfg.Server.APIKeys = config.SplitList(*apiKeys)
	}

	log := logger.NewLogger(cfg.Logging.Level)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.OpenStore(ctx, cfg.Storage.Backend, cfg.Storage.SQLitePath, cfg.Storage.Postgres)
	if err != nil {
		log.Fatal("Failed to open store", "backend", cfg.Storage.Backend, "error", err)
	}
	defer func() { _ = store.Close() }()
	rec := &storage.Recorder{Store: store}

	var ch *storage.ClickHouseDB
	if cfg.Storage.ClickHouse.Enabled {
		ch, err = storage.OpenClickHouse(ctx, cfg.Storage.ClickHouse)
		if err != nil {
			log.Fatal("Failed to open ClickHouse", "error", err)
		}
		defer func() { _ = ch.Close() }()
		if err := ch.CreateSchema(ctx); err != nil {
			log.Fatal("Failed to create ClickHouse schema", "error", err)
		}
		rec.Facts = ch
	}

	opts := pipeline.DefaultOptions()
	opts.Parser = cfg.ParserOptions(nil)
	opts.Metrics = cfg.Metrics()

	server := api.NewServer(rec, opts, api.Config{
		Port:           cfg.Server.Port,
		AuthEnabled:    cfg.Server.AuthEnabled,
		APIKeys:        cfg.Server.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Timeout:        time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}, log)

	if ch != nil {
		server.WithShares(ch)
	}

	if cfg.NATS.URL != "" {
		reporter, err := progress.DialNATS(progress.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Name:          "pairing-api",
		})
		if err != nil {
			log.Fatal("Failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
		}
		defer func() { _ = reporter.Close() }()
		server.WithProgress(reporter)
		log.Info("Publishing progress", "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	log.Info("Store ready",
		"backend", cfg.Storage.Backend,
		"clickhouse", cfg.Storage.ClickHouse.Enabled,
		"edw_window", cfg.Analysis.EDWWindow,
	)

	if err := server.Run(ctx); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
