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
	"sort"
	"time"

	"scouter/pkg/record"
)

type spcEvaluator struct{}

// spcPoint is one classified observation: its zone (1-4, 4 = beyond 3σ)
// and side (true = at/above center) relative to the feature's baseline.
type spcPoint struct {
	at    time.Time
	value float64
	zone  int
	above bool
}

func classifySPC(value, center, sigma float64) (zone int, above bool) {
	above = value >= center
	if sigma <= 0 {
		return 4, above
	}
	d := value - center
	if d < 0 {
		d = -d
	}
	switch {
	case d <= sigma:
		return 1, above
	case d <= 2*sigma:
		return 2, above
	case d <= 3*sigma:
		return 3, above
	default:
		return 4, above
	}
}

// ruleSpec is one of the eight Western Electric-style zone pattern rules.
type ruleSpec struct {
	index       int
	minZone     int
	alternating bool
	exactZone4  bool
}

var spcRules = []ruleSpec{
	{index: 0, minZone: 1},
	{index: 1, minZone: 1, alternating: true},
	{index: 2, minZone: 2},
	{index: 3, minZone: 2, alternating: true},
	{index: 4, minZone: 3},
	{index: 5, minZone: 3, alternating: true},
	{index: 6, minZone: 4, exactZone4: true},
	{index: 7, minZone: 4, exactZone4: true, alternating: true},
}

// matchesRun reports whether the length-n window of points ending at
// endIdx (inclusive) satisfies r.
func (r ruleSpec) matchesRun(points []spcPoint, endIdx, n int) bool {
	startIdx := endIdx - n + 1
	if startIdx < 0 {
		return false
	}
	var prevAbove bool
	for i := startIdx; i <= endIdx; i++ {
		p := points[i]
		if r.exactZone4 {
			if p.zone != 4 {
				return false
			}
		} else if p.zone < r.minZone {
			return false
		}
		if i == startIdx {
			prevAbove = p.above
			continue
		}
		if r.alternating {
			if p.above == prevAbove {
				return false
			}
		} else if p.above != prevAbove {
			return false
		}
		prevAbove = p.above
	}
	return true
}

// trendRun reports whether the 7-point window ending at endIdx is strictly
// increasing or strictly decreasing.
func trendRun(points []spcPoint, endIdx int) bool {
	const n = 7
	startIdx := endIdx - n + 1
	if startIdx < 0 {
		return false
	}
	increasing, decreasing := true, true
	for i := startIdx + 1; i <= endIdx; i++ {
		if !(points[i].value > points[i-1].value) {
			increasing = false
		}
		if !(points[i].value < points[i-1].value) {
			decreasing = false
		}
	}
	return increasing || decreasing
}

func (spcEvaluator) Evaluate(profile record.DriftProfile, window record.WindowSlice, now time.Time) ([]record.FiredAlert, error) {
	if profile.SPC == nil {
		return nil, fmt.Errorf("evaluator: SPC evaluation requires an SPC profile")
	}
	monitored := monitorSet(profile.SPC.FeaturesToMonitor)

	var alerts []record.FiredAlert
	for _, series := range window.SPC {
		if !monitored(series.Feature) {
			continue
		}
		baseline, ok := profile.SPC.Features[series.Feature]
		if !ok {
			continue
		}
		if alert := evaluateSPCFeature(series, baseline, profile.SPC.AlertRule, profile.EntityID, now); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, nil
}

func evaluateSPCFeature(series record.SPCSeries, baseline record.FeatureSPCProfile, rule record.SPCAlertRule, entityID int64, now time.Time) *record.FiredAlert {
	// Callers may hand back DESC order; re-sort ascending so "earliest
	// fired rule, scanning left-to-right" has an unambiguous meaning here.
	points := make([]spcPoint, len(series.Points))
	for i, p := range series.Points {
		zone, above := classifySPC(p.Value, baseline.Center, baseline.OneStdDev)
		points[i] = spcPoint{at: p.CreatedAt, value: p.Value, zone: zone, above: above}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	bestEnd := -1
	bestRule := -1
	bestKind := ""

	for _, r := range spcRules {
		threshold := rule.Thresholds[r.index]
		if threshold <= 0 {
			continue
		}
		for end := threshold - 1; end < len(points); end++ {
			if r.matchesRun(points, end, threshold) {
				if bestEnd == -1 || end < bestEnd || (end == bestEnd && r.index < bestRule) {
					bestEnd = end
					bestRule = r.index
					bestKind = fmt.Sprintf("spc_rule_%d", r.index)
				}
				break // earliest occurrence for this rule found; no need to scan further
			}
		}
	}

	for end := 6; end < len(points); end++ {
		if trendRun(points, end) {
			if bestEnd == -1 || end < bestEnd {
				bestEnd = end
				bestRule = -1
				bestKind = "spc_trend"
			}
			break
		}
	}

	if bestEnd == -1 {
		return nil
	}
	p := points[bestEnd]
	return &record.FiredAlert{
		EntityID:        entityID,
		DriftType:       record.SPC,
		FeatureOrMetric: series.Feature,
		Kind:            bestKind,
		Diagnostic: map[string]any{
			"zone":       p.zone,
			"value":      p.value,
			"center":     baseline.Center,
			"one_stddev": baseline.OneStdDev,
		},
		CreatedAt: now,
	}
}

func monitorSet(names []string) func(string) bool {
	if len(names) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}
