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

	"go.uber.org/zap"
)

// LogDispatcher writes each alert payload as a structured log line. It is
// the default adapter and always available: no infrastructure required.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher builds a LogDispatcher writing through logger.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, payload Payload) error {
	d.logger.Info("drift alert",
		zap.Int64("entity_id", payload.EntityID),
		zap.String("space", payload.Space),
		zap.String("name", payload.Name),
		zap.String("version", payload.Version),
		zap.String("drift_type", string(payload.DriftType)),
		zap.Time("created_at", payload.CreatedAt),
		zap.ByteString("alert", payload.Alert),
	)
	return nil
}
