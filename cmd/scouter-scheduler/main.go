// Copyright 2026 The Scouter Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the entry point for the scouter scheduler binary.
//
// Startup sequence:
//  1. Load and validate config (flag-provided path, defaults + env override).
//  2. Initialize the structured logger (zap, level+format from config).
//  3. Open the Postgres connection pool and wrap it in a Store.
//  4. Build the profile cache, optionally mirrored to Redis.
//  5. Build the alert dispatcher and its metrics-aware Sender.
//  6. Build the telemetry registry and start its /metrics server.
//  7. Start the scheduler's worker pool.
//  8. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Stop the scheduler (drains in-flight ticks up to DrainTimeout).
//  2. Close the Postgres pool.
//  3. Flush the logger.
//
// The metrics HTTP server is not shut down explicitly; it ends when the
// process exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scouter/internal/alert"
	"scouter/internal/cache"
	"scouter/internal/config"
	"scouter/internal/scheduler"
	"scouter/internal/store"
	"scouter/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (optional; defaults + env vars apply regardless)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("scouter-scheduler starting",
		zap.String("metrics_addr", cfg.Metrics.Addr),
		zap.Int("worker_count", cfg.Scheduler.WorkerCount),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.Store.MaxConns)
	if err != nil {
		log.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool, cfg.Store.CallTimeout)
	log.Info("postgres store ready")

	var mirror cache.Mirror
	if cfg.Cache.RedisAddr != "" {
		mirror = cache.NewRedisMirror(cfg.Cache.RedisAddr)
		log.Info("cache redis mirror enabled", zap.String("addr", cfg.Cache.RedisAddr))
	}
	profileCache := cache.New(cache.Options{
		Size:   cfg.Cache.Size,
		TTL:    cfg.Cache.TTL,
		Mirror: mirror,
	})

	metrics := telemetry.New()

	var kafkaProducer alert.Producer
	if len(cfg.Alert.KafkaBrokers) > 0 {
		writerProducer := alert.NewKafkaWriterProducer(cfg.Alert.KafkaBrokers)
		defer writerProducer.Close()
		kafkaProducer = writerProducer
	}
	dispatcher, err := alert.Build(cfg.Alert.Dispatcher, alert.Options{
		KafkaTopic:    cfg.Alert.KafkaTopic,
		KafkaProducer: kafkaProducer,
		WebhookURL:    cfg.Alert.WebhookURL,
		Logger:        log,
	})
	if err != nil {
		log.Fatal("alert dispatcher build failed", zap.Error(err))
	}
	sender := alert.NewSender(dispatcher, log, metrics, 0)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{}))
		log.Info("metrics server started", zap.String("addr", cfg.Metrics.Addr))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	sched := scheduler.New(st, scheduler.Options{
		Workers:      cfg.Scheduler.WorkerCount,
		PollInterval: cfg.Scheduler.PollInterval,
		DrainTimeout: cfg.Scheduler.DrainTimeout,
		Cache:        profileCache,
		Dispatcher:   sender,
		Metrics:      metrics,
		Logger:       log,
	})
	sched.Start()
	log.Info("scheduler started", zap.Int("workers", cfg.Scheduler.WorkerCount))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	sched.Stop()
	log.Info("scheduler stopped")
	cancel()
	log.Info("scouter-scheduler shutdown complete")
}

// buildLogger constructs a zap.Logger with the given level and format:
// production config (JSON) by default, development config for "console".
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return zcfg.Build()
}
