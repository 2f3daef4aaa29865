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

// Package evaluator implements the drift evaluator: given a profile
// and a windowed read, it computes fired alerts. One Evaluator
// implementation exists per drift type, selected by Select: a single
// one-interface-many-backends shape generalized from "apply a commit" to
// "evaluate a window".
package evaluator

import (
	"fmt"
	"time"

	"scouter/pkg/record"
)

// Evaluator computes fired alerts for one drift type. Implementations are
// pure CPU and must be idempotent given identical inputs.
type Evaluator interface {
	Evaluate(profile record.DriftProfile, window record.WindowSlice, now time.Time) ([]record.FiredAlert, error)
}

// Select returns the Evaluator for driftType.
func Select(driftType record.DriftType) (Evaluator, error) {
	switch driftType {
	case record.SPC:
		return spcEvaluator{}, nil
	case record.PSI:
		return psiEvaluator{}, nil
	case record.Custom, record.LLM:
		return customEvaluator{}, nil
	default:
		return nil, fmt.Errorf("evaluator: unknown drift type %q", driftType)
	}
}
