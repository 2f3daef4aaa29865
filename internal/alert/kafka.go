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
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// Producer is a minimal abstraction over a Kafka client: implementations
// should enable an idempotent producer (enable.idempotence=true) and use
// the message key for broker-level dedup and per-key ordering.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaDispatcher publishes each alert payload as a JSON message keyed by
// its natural key (entity_id, created_at): the broker's idempotent-producer
// guarantee plus a stable key is what makes at-least-once delivery safe to
// dedup downstream, not anything this type does itself.
type KafkaDispatcher struct {
	producer       Producer
	topic          string
	defaultTimeout time.Duration
}

// NewKafkaDispatcher builds a KafkaDispatcher publishing to topic via p.
func NewKafkaDispatcher(p Producer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{producer: p, topic: topic, defaultTimeout: 10 * time.Second}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, payload Payload) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && d.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.defaultTimeout)
		defer cancel()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alert: marshal kafka message: %w", err)
	}
	headers := map[string]string{"content-type": "application/json"}
	if err := d.producer.Produce(ctx, d.topic, []byte(payload.Key()), body, headers); err != nil {
		return fmt.Errorf("alert: kafka produce entity=%d key=%s: %w", payload.EntityID, payload.Key(), err)
	}
	return nil
}

// LoggingProducer is a dependency-free Producer that logs what it would
// have sent, for demo/test wiring without a broker.
type LoggingProducer struct {
	Sink func(topic string, key, value []byte, headers map[string]string)
}

func (p LoggingProducer) Produce(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p.Sink != nil {
		p.Sink(topic, key, value, headers)
	}
	return nil
}

// KafkaWriterProducer adapts a *kafka.Writer to the Producer interface.
// The writer should be constructed with Balancer: &kafka.Hash{} (or left at
// its default round robin disabled by key presence) so that messages
// sharing a key land on the same partition, preserving per-entity ordering.
type KafkaWriterProducer struct {
	Writer *kafka.Writer
}

// NewKafkaWriterProducer builds a Producer backed by a kafka.Writer talking
// to brokers, with RequiredAcks set for idempotent-producer-equivalent
// durability (all in-sync replicas must ack before Produce returns).
func NewKafkaWriterProducer(brokers []string) *KafkaWriterProducer {
	return &KafkaWriterProducer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *KafkaWriterProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	hdrs := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		hdrs = append(hdrs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: hdrs,
	})
}

// Close releases the underlying writer's connections.
func (p *KafkaWriterProducer) Close() error {
	return p.Writer.Close()
}
