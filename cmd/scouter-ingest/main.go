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

// Package main provides the entry point for the scouter ingestion-daemon
// binary: one bounded batching queue per drift_type (internal/ingest),
// fronted by an HTTP intake and, when brokers are configured, a Kafka
// consumer intake per drift_type (internal/intake).
//
// Startup sequence:
//  1. Load and validate config.
//  2. Initialize the structured logger.
//  3. Open the Postgres pool and wrap it in a Store (the ingest sink).
//  4. Build one Queue per drift_type and start its flush loop.
//  5. Start the Kafka consumers, one per drift_type, if brokers configured.
//  6. Start the HTTP intake server.
//  7. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence: stop the Kafka consumers, stop every queue (each
// performs a final flush), close the Postgres pool. The HTTP intake server
// is not shut down explicitly; it ends when the process exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scouter/internal/config"
	"scouter/internal/ingest"
	"scouter/internal/intake"
	"scouter/internal/store"
	"scouter/internal/telemetry"
	"scouter/pkg/record"
)

var allDriftTypes = []record.DriftType{record.SPC, record.PSI, record.Custom, record.LLM}

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

	log.Info("scouter-ingest starting", zap.String("http_addr", cfg.Ingest.HTTPAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.Store.MaxConns)
	if err != nil {
		log.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool, cfg.Store.CallTimeout)

	metrics := telemetry.New()

	queues := make(intake.Queues, len(allDriftTypes))
	for _, dt := range allDriftTypes {
		q := ingest.NewQueue(dt, st, ingest.Options{
			Capacity:      cfg.Ingest.QueueCapacity,
			FlushInterval: cfg.Ingest.FlushInterval,
			Metrics:       metrics,
		})
		q.Start(ctx)
		queues[dt] = q
	}
	log.Info("ingestion queues started", zap.Int("drift_types", len(queues)))

	var consumers []*intake.KafkaConsumer
	if len(cfg.Ingest.Kafka.Brokers) > 0 {
		for _, dt := range allDriftTypes {
			topic := cfg.Ingest.Kafka.TopicPrefix + strings.ToLower(string(dt))
			c := intake.NewKafkaConsumer(intake.KafkaConsumerConfig{
				Brokers:   cfg.Ingest.Kafka.Brokers,
				Topic:     topic,
				GroupID:   cfg.Ingest.Kafka.GroupID,
				DriftType: dt,
			}, queues[dt], log)
			consumers = append(consumers, c)
			go func(dt record.DriftType, topic string) {
				if err := c.Run(ctx); err != nil {
					log.Error("kafka consumer stopped", zap.String("drift_type", string(dt)), zap.String("topic", topic), zap.Error(err))
				}
			}(dt, topic)
		}
		log.Info("kafka consumer intake started", zap.Strings("brokers", cfg.Ingest.Kafka.Brokers))
	} else {
		log.Info("kafka consumer intake disabled (no brokers configured)")
	}

	intakeServer := intake.NewServer(queues, log)
	go func() {
		if err := intakeServer.ListenAndServe(cfg.Ingest.HTTPAddr); err != nil {
			log.Error("ingest HTTP intake error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	for _, c := range consumers {
		_ = c.Close()
	}
	for _, q := range queues {
		q.Stop()
	}
	log.Info("scouter-ingest shutdown complete")
}

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
