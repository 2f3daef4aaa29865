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

type psiEvaluator struct{}

// laplaceEpsilon is substituted for any zero bin proportion before the log
// term, avoiding a division by zero / log of zero.
const laplaceEpsilon = 1e-4

func (psiEvaluator) Evaluate(profile record.DriftProfile, window record.WindowSlice, now time.Time) ([]record.FiredAlert, error) {
	if profile.PSI == nil {
		return nil, fmt.Errorf("evaluator: PSI evaluation requires a PSI profile")
	}
	monitored := monitorSet(profile.PSI.FeaturesToMonitor)
	threshold := profile.PSI.Threshold
	if threshold <= 0 {
		threshold = record.DefaultPSIThreshold
	}

	var alerts []record.FiredAlert
	for _, obs := range window.PSI {
		if !monitored(obs.Feature) {
			continue
		}
		baseline, ok := profile.PSI.Features[obs.Feature]
		if !ok {
			continue // store already applied the min-sample-size gate; a
			// missing baseline just means this feature isn't profiled
		}
		psi := computePSI(baseline, obs)
		if psi > threshold {
			alerts = append(alerts, record.FiredAlert{
				EntityID:        profile.EntityID,
				DriftType:       record.PSI,
				FeatureOrMetric: obs.Feature,
				Kind:            "psi_threshold",
				Diagnostic: map[string]any{
					"psi":       psi,
					"threshold": threshold,
				},
				CreatedAt: now,
			})
		}
	}
	return alerts, nil
}

// computePSI computes Σ (o[k] - b[k]) * ln(o[k]/b[k]) over the baseline's
// bins, with observed proportions derived from obs.Counts/obs.Total and
// Laplace smoothing of zero bins on either side.
func computePSI(baseline record.PSIFeature, obs record.PSICounts) float64 {
	var psi float64
	for _, bin := range baseline.Bins {
		b := bin.Proportion
		if b <= 0 {
			b = laplaceEpsilon
		}
		var o float64
		if obs.Total > 0 {
			o = float64(obs.Counts[bin.ID]) / float64(obs.Total)
		}
		if o <= 0 {
			o = laplaceEpsilon
		}
		psi += (o - b) * math.Log(o/b)
	}
	return psi
}
