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

package evaluator

import (
	"fmt"
	"math"
	"time"

	"scouter/pkg/record"
)

// customEvaluator implements both drift_type=CUSTOM and drift_type=LLM: LLM
// metrics share the identical Above/Below/Outside threshold structure over
// LLM-scored metrics.
type customEvaluator struct{}

func (customEvaluator) Evaluate(profile record.DriftProfile, window record.WindowSlice, now time.Time) ([]record.FiredAlert, error) {
	var metrics map[string]record.CustomMetric
	switch profile.Kind {
	case record.Custom:
		if profile.Custom == nil {
			return nil, fmt.Errorf("evaluator: Custom evaluation requires a Custom profile")
		}
		metrics = profile.Custom.Metrics
	case record.LLM:
		if profile.LLM == nil {
			return nil, fmt.Errorf("evaluator: LLM evaluation requires an LLM profile")
		}
		metrics = profile.LLM.Metrics
	default:
		return nil, fmt.Errorf("evaluator: customEvaluator cannot handle drift type %q", profile.Kind)
	}

	var alerts []record.FiredAlert
	for _, avg := range window.Custom {
		m, ok := metrics[avg.Metric]
		if !ok {
			continue
		}
		kind, fired := evaluateThreshold(m, avg.Average)
		if !fired {
			continue
		}
		alerts = append(alerts, record.FiredAlert{
			EntityID:        profile.EntityID,
			DriftType:       profile.Kind,
			FeatureOrMetric: avg.Metric,
			Kind:            kind,
			Diagnostic: map[string]any{
				"baseline": m.Baseline,
				"observed": avg.Average,
			},
			CreatedAt: now,
		})
	}
	return alerts, nil
}

func evaluateThreshold(m record.CustomMetric, observed float64) (kind string, fired bool) {
	var tv float64
	if m.ThresholdValue != nil {
		tv = *m.ThresholdValue
	}
	switch m.Threshold {
	case record.Above:
		return "custom_above", observed > m.Baseline+tv
	case record.Below:
		return "custom_below", observed < m.Baseline-tv
	case record.Outside:
		return "custom_outside", math.Abs(observed-m.Baseline) > tv
	default:
		return "", false
	}
}
