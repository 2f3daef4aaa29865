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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsFailValidationWithoutDatabaseURL(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for empty database_url")
	}
}

func TestLoadAppliesFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := "database_url: postgres://file/db\nscheduler:\n  worker_count: 8\nstore:\n  max_connections: 32\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("SCOUTER_SCHEDULE_WORKER_COUNT", "16")
	t.Setenv("SCOUTER_POLL_INTERVAL_MS", "250")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://file/db" {
		t.Fatalf("database_url = %q, want file value", cfg.DatabaseURL)
	}
	if cfg.Scheduler.WorkerCount != 16 {
		t.Fatalf("worker_count = %d, want env override 16 (file said 8)", cfg.Scheduler.WorkerCount)
	}
	if cfg.Scheduler.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll_interval = %v, want 250ms", cfg.Scheduler.PollInterval)
	}
}

func TestValidateRejectsWebhookDispatcherWithoutURL(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	cfg.Alert.Dispatcher = "webhook"
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected error for webhook dispatcher with no URL")
	}
}

func TestValidateRejectsOutOfRangeWorkerCount(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	cfg.Scheduler.WorkerCount = 0
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected error for worker_count=0")
	}
}

func TestValidatePassesOnDefaultsWithDatabaseURL(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://localhost/scouter"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsKafkaBrokersWithoutTopicPrefix(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	cfg.Ingest.Kafka.Brokers = []string{"broker:9092"}
	cfg.Ingest.Kafka.TopicPrefix = ""
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected error for kafka brokers set without a topic prefix")
	}
}

func TestValidateRejectsPoolSizeTooSmallForWorkersAndQueues(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	cfg.Scheduler.WorkerCount = 8
	cfg.Store.MaxConns = 10 // need >= 8 + 4 queues + 1 = 13
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected error for pool size smaller than worker_count + queues + 1")
	}
}

func TestValidatePassesWhenPoolSizeCoversWorkersAndQueues(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	cfg.Scheduler.WorkerCount = 8
	cfg.Store.MaxConns = 13
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestEnvOverridesApplyMaxConnections(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	t.Setenv("SCOUTER_STORE_MAX_CONNECTIONS", "20")
	applyEnvOverrides(&cfg)
	if cfg.Store.MaxConns != 20 {
		t.Fatalf("max_connections = %d, want 20", cfg.Store.MaxConns)
	}
}

func TestEnvOverridesApplyCommaSeparatedBrokerList(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://x"
	t.Setenv("SCOUTER_ALERT_KAFKA_BROKERS", "broker-a:9092,broker-b:9092")
	applyEnvOverrides(&cfg)
	if len(cfg.Alert.KafkaBrokers) != 2 || cfg.Alert.KafkaBrokers[0] != "broker-a:9092" {
		t.Fatalf("kafka_brokers = %v, want 2 entries", cfg.Alert.KafkaBrokers)
	}
}
