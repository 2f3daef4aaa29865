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

package intake

import (
	"context"
	"errors"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"scouter/internal/ingest"
	"scouter/pkg/record"
)

// KafkaConsumer reads observation records off one topic and enqueues them
// onto the matching drift type's queue. One consumer is started per drift
// type, each against its own topic, mirroring the one-queue-per-drift-type
// shape internal/ingest already assumes.
type KafkaConsumer struct {
	reader    *kafka.Reader
	driftType record.DriftType
	queue     *ingest.Queue
	logger    *zap.Logger
}

// KafkaConsumerConfig configures one topic's consumer.
type KafkaConsumerConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	DriftType record.DriftType
}

// NewKafkaConsumer builds a KafkaConsumer delivering decoded records onto
// queue. Call Run to start consuming; Run blocks until ctx is canceled or
// the reader is closed.
func NewKafkaConsumer(cfg KafkaConsumerConfig, queue *ingest.Queue, logger *zap.Logger) *KafkaConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &KafkaConsumer{reader: reader, driftType: cfg.DriftType, queue: queue, logger: logger}
}

// Run consumes messages until ctx is canceled, decoding and enqueueing
// each one. A decode failure is logged and the message is skipped (it is
// still committed — a malformed message will never become well-formed by
// redelivery).
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		rec, err := DecodeRecord(c.driftType, msg.Value)
		if err != nil {
			c.logger.Warn("kafka intake: dropping undecodable message",
				zap.String("drift_type", string(c.driftType)),
				zap.Error(err))
		} else {
			c.queue.Enqueue(ctx, rec)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("kafka intake: commit failed", zap.Error(err))
		}
	}
}

// Close releases the underlying reader's connections.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
