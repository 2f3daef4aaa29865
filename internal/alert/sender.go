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
	"time"

	"go.uber.org/zap"

	"scouter/pkg/record"
)

// Sender adapts a Dispatcher to the scheduler's AlertDispatcher interface:
// one Dispatch call per fired alert, at-least-once, with every error
// logged and counted rather than returned — dispatch never fails the tick.
type Sender struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    Metrics
	timeout    time.Duration
}

// NewSender builds a Sender around dispatcher. A nil logger/metrics use
// no-op defaults; timeout <= 0 defaults to 5s per alert.
func NewSender(dispatcher Dispatcher, logger *zap.Logger, metrics Metrics, timeout time.Duration) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sender{dispatcher: dispatcher, logger: logger, metrics: metrics, timeout: timeout}
}

// Dispatch sends every alert in alerts through the underlying Dispatcher.
// It never returns an error: failures are logged and counted so the
// scheduler tick that produced these alerts always completes.
func (s *Sender) Dispatch(ctx context.Context, entity record.DriftEntity, alerts []record.DriftAlert) {
	for _, a := range alerts {
		payload := NewPayload(entity, a)
		dctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.dispatcher.Dispatch(dctx, payload)
		cancel()
		if err != nil {
			s.logger.Error("alert dispatch failed",
				zap.Int64("entity_id", entity.ID),
				zap.String("drift_type", string(a.DriftType)),
				zap.Error(err),
			)
			s.metrics.IncDispatchFailures(a.DriftType)
		}
	}
}
