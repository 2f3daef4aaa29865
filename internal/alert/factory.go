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

package alert

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Options configures Build. Fields not used by the selected adapter are
// ignored.
type Options struct {
	KafkaTopic    string
	KafkaProducer Producer
	WebhookURL    string
	WebhookClient *http.Client
	Logger        *zap.Logger
}

// Build constructs a Dispatcher for the demo/production configuration
// selected by adapter.
//
// Supported adapters:
//   - "", "log"    — structured-log dispatcher (default; always available)
//   - "kafka"      — JSON-over-Kafka using opts.KafkaProducer (falls back to
//     a logging producer if none is given, for dependency-free demos)
//   - "webhook"    — JSON POST to opts.WebhookURL
func Build(adapter string, opts Options) (Dispatcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch adapter {
	case "", "log":
		return NewLogDispatcher(logger), nil
	case "kafka":
		topic := opts.KafkaTopic
		if topic == "" {
			topic = "scouter-alerts"
		}
		producer := opts.KafkaProducer
		if producer == nil {
			producer = LoggingProducer{}
		}
		return NewKafkaDispatcher(producer, topic), nil
	case "webhook":
		if opts.WebhookURL == "" {
			return nil, fmt.Errorf("alert: webhook adapter requires a non-empty URL")
		}
		return NewWebhookDispatcher(opts.WebhookClient, opts.WebhookURL), nil
	default:
		return nil, fmt.Errorf("alert: unknown dispatcher adapter %q", adapter)
	}
}
