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

// Package config loads and validates the YAML configuration shared by the
// scheduler and ingest binaries: defaults first, then an
// optional file, then environment-variable overrides for every SCOUTER_*
// and DATABASE_URL name.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	DatabaseURL string `yaml:"database_url"`

	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Cache     CacheConfig     `yaml:"cache"`
	Alert     AlertConfig     `yaml:"alert"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Store     StoreConfig     `yaml:"store"`
}

// LogConfig controls structured-log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// CacheConfig controls the profile cache (internal/cache).
type CacheConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	Size      int           `yaml:"size"`
	RedisAddr string        `yaml:"redis_addr"` // empty disables the mirror
}

// AlertConfig controls the alert emitter (internal/alert).
type AlertConfig struct {
	Dispatcher    string   `yaml:"dispatcher"` // log, kafka, webhook
	KafkaTopic    string   `yaml:"kafka_topic"`
	KafkaBrokers  []string `yaml:"kafka_brokers"` // empty uses the dependency-free logging producer
	WebhookURL    string   `yaml:"webhook_url"`
}

// IngestKafkaConfig controls the Kafka consumer intake (cmd/scouter-ingest),
// one topic per drift_type sharing a single consumer group.
type IngestKafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"` // + lowercased drift_type, e.g. "scouter-observations-custom"
	GroupID     string   `yaml:"group_id"`
}

// SchedulerConfig controls the cron-driven task poller (internal/scheduler).
type SchedulerConfig struct {
	WorkerCount  int           `yaml:"worker_count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// IngestConfig controls the batching queue (internal/ingest) and its
// optional Kafka consumer intake.
type IngestConfig struct {
	QueueCapacity int               `yaml:"queue_capacity"`
	FlushInterval time.Duration     `yaml:"flush_interval"`
	HTTPAddr      string            `yaml:"http_addr"`
	Kafka         IngestKafkaConfig `yaml:"kafka"`
}

// StoreConfig controls the store backend (internal/store).
type StoreConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
	MaxConns    int32         `yaml:"max_connections"` // pgxpool.Config.MaxConns
}

// ingestQueueCount is the number of drift-type queues the ingest and
// scheduler binaries each hold a pool connection for: one per SPC, PSI,
// CUSTOM, and LLM.
const ingestQueueCount = 4

// Defaults returns a Config populated with every documented default value.
func Defaults() Config {
	return Config{
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9091"},
		Cache: CacheConfig{
			TTL:  60 * time.Second,
			Size: 1024,
		},
		Alert: AlertConfig{
			Dispatcher: "log",
			KafkaTopic: "scouter-alerts",
		},
		Scheduler: SchedulerConfig{
			WorkerCount:  4,
			PollInterval: time.Second,
			DrainTimeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			QueueCapacity: 1000,
			FlushInterval: 5 * time.Second,
			HTTPAddr:      "0.0.0.0:8090",
			Kafka: IngestKafkaConfig{
				TopicPrefix: "scouter-observations-",
				GroupID:     "scouter-ingest",
			},
		},
		Store: StoreConfig{
			CallTimeout: 30 * time.Second,
			MaxConns:    10,
		},
	}
}

// Load reads the config file at path, applies environment-variable
// overrides, and then validates the result: defaults, then an optional
// file, then env vars, in that precedence order.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str(&cfg.DatabaseURL, "DATABASE_URL")
	str(&cfg.Log.Level, "SCOUTER_LOG_LEVEL")
	str(&cfg.Log.Format, "SCOUTER_LOG_FORMAT")
	str(&cfg.Metrics.Addr, "SCOUTER_METRICS_ADDR")
	millis(&cfg.Cache.TTL, "SCOUTER_CACHE_TTL_MS")
	intVal(&cfg.Cache.Size, "SCOUTER_CACHE_SIZE")
	str(&cfg.Cache.RedisAddr, "SCOUTER_CACHE_REDIS_ADDR")
	str(&cfg.Alert.Dispatcher, "SCOUTER_ALERT_DISPATCHER")
	str(&cfg.Alert.KafkaTopic, "SCOUTER_ALERT_KAFKA_TOPIC")
	strSlice(&cfg.Alert.KafkaBrokers, "SCOUTER_ALERT_KAFKA_BROKERS")
	str(&cfg.Alert.WebhookURL, "SCOUTER_ALERT_WEBHOOK_URL")
	intVal(&cfg.Scheduler.WorkerCount, "SCOUTER_SCHEDULE_WORKER_COUNT")
	millis(&cfg.Scheduler.PollInterval, "SCOUTER_POLL_INTERVAL_MS")
	millis(&cfg.Scheduler.DrainTimeout, "SCOUTER_DRAIN_TIMEOUT_MS")
	intVal(&cfg.Ingest.QueueCapacity, "SCOUTER_QUEUE_CAPACITY")
	millis(&cfg.Ingest.FlushInterval, "SCOUTER_FLUSH_INTERVAL_MS")
	str(&cfg.Ingest.HTTPAddr, "SCOUTER_INGEST_HTTP_ADDR")
	strSlice(&cfg.Ingest.Kafka.Brokers, "SCOUTER_INGEST_KAFKA_BROKERS")
	str(&cfg.Ingest.Kafka.TopicPrefix, "SCOUTER_INGEST_KAFKA_TOPIC_PREFIX")
	str(&cfg.Ingest.Kafka.GroupID, "SCOUTER_INGEST_KAFKA_GROUP_ID")
	millis(&cfg.Store.CallTimeout, "SCOUTER_STORE_CALL_TIMEOUT_MS")
	int32Val(&cfg.Store.MaxConns, "SCOUTER_STORE_MAX_CONNECTIONS")
}

func str(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func intVal(dst *int, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func int32Val(dst *int32, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 32); err == nil {
		*dst = int32(n)
	}
}

func strSlice(dst *[]string, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if v == "" {
		*dst = nil
		return
	}
	*dst = strings.Split(v, ",")
}

func millis(dst *time.Duration, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Millisecond
	}
}

// Validate checks every config field, returning one error that lists all
// violations found rather than stopping at the first one.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.DatabaseURL == "" {
		errs = append(errs, "database_url must not be empty")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be one of debug/info/warn/error, got %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", cfg.Log.Format))
	}
	if cfg.Cache.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("cache.ttl must be > 0, got %s", cfg.Cache.TTL))
	}
	if cfg.Cache.Size < 1 {
		errs = append(errs, fmt.Sprintf("cache.size must be >= 1, got %d", cfg.Cache.Size))
	}
	switch cfg.Alert.Dispatcher {
	case "log", "kafka", "webhook":
	default:
		errs = append(errs, fmt.Sprintf("alert.dispatcher must be log/kafka/webhook, got %q", cfg.Alert.Dispatcher))
	}
	if cfg.Alert.Dispatcher == "webhook" && cfg.Alert.WebhookURL == "" {
		errs = append(errs, "alert.webhook_url is required when alert.dispatcher is webhook")
	}
	if cfg.Scheduler.WorkerCount < 1 || cfg.Scheduler.WorkerCount > 256 {
		errs = append(errs, fmt.Sprintf("scheduler.worker_count must be in [1, 256], got %d", cfg.Scheduler.WorkerCount))
	}
	if cfg.Scheduler.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("scheduler.poll_interval must be > 0, got %s", cfg.Scheduler.PollInterval))
	}
	if cfg.Scheduler.DrainTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("scheduler.drain_timeout must be > 0, got %s", cfg.Scheduler.DrainTimeout))
	}
	if cfg.Ingest.QueueCapacity < 1 {
		errs = append(errs, fmt.Sprintf("ingest.queue_capacity must be >= 1, got %d", cfg.Ingest.QueueCapacity))
	}
	if cfg.Ingest.FlushInterval <= 0 {
		errs = append(errs, fmt.Sprintf("ingest.flush_interval must be > 0, got %s", cfg.Ingest.FlushInterval))
	}
	if cfg.Ingest.HTTPAddr == "" {
		errs = append(errs, "ingest.http_addr must not be empty")
	}
	if len(cfg.Ingest.Kafka.Brokers) > 0 && cfg.Ingest.Kafka.TopicPrefix == "" {
		errs = append(errs, "ingest.kafka.topic_prefix must not be empty when ingest.kafka.brokers is set")
	}
	if cfg.Store.CallTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("store.call_timeout must be > 0, got %s", cfg.Store.CallTimeout))
	}
	if cfg.Store.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("store.max_connections must be >= 1, got %d", cfg.Store.MaxConns))
	} else if need := int32(cfg.Scheduler.WorkerCount + ingestQueueCount + 1); cfg.Store.MaxConns < need {
		errs = append(errs, fmt.Sprintf("store.max_connections (%d) must be >= scheduler.worker_count + %d ingest queues + 1 (%d)",
			cfg.Store.MaxConns, ingestQueueCount, need))
	}

	if len(errs) > 0 {
		msg := errs[0]
		for _, e := range errs[1:] {
			msg += "\n  - " + e
		}
		return fmt.Errorf("config validation errors:\n  - %s", msg)
	}
	return nil
}
