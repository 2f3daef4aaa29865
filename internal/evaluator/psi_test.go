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
	"math"
	"testing"
	"time"

	"scouter/pkg/record"
)

func psiProfile(threshold float64, bins []record.Bin) record.DriftProfile {
	return record.DriftProfile{
		EntityID: 1,
		Kind:     record.PSI,
		PSI: &record.PSIProfile{
			Features:          map[string]record.PSIFeature{"f": {Bins: bins}},
			Threshold:         threshold,
			FeaturesToMonitor: []string{"f"},
		},
	}
}

func equalBaseline() []record.Bin {
	return []record.Bin{
		{ID: 0, Proportion: 0.25},
		{ID: 1, Proportion: 0.25},
		{ID: 2, Proportion: 0.25},
		{ID: 3, Proportion: 0.25},
	}
}

// TestPSICorrectnessEqualDistributions checks that equal proportions
// yield PSI = 0.
func TestPSICorrectnessEqualDistributions(t *testing.T) {
	profile := psiProfile(0.25, equalBaseline())
	window := record.WindowSlice{PSI: []record.PSICounts{
		{Feature: "f", Total: 1000, Counts: map[int]int64{0: 250, 1: 250, 2: 250, 3: 250}},
	}}
	e, _ := Select(record.PSI)
	alerts, err := e.Evaluate(profile, window, time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("equal distributions fired %d alerts, want 0", len(alerts))
	}

	got := computePSI(record.PSIFeature{Bins: equalBaseline()}, window.PSI[0])
	if math.Abs(got) > 1e-9 {
		t.Errorf("PSI = %v, want 0 ± 1e-9", got)
	}
}

// TestPSICorrectnessSkewedDistribution checks the Σ(o-b)ln(o/b) formula
// directly against a worked baseline/observed pair, computed to full
// precision: Σ(0.15·ln1.6 + 0.05·ln1.2 − 0.05·ln0.8 − 0.15·ln0.4) evaluates
// to ≈0.2282, which is what this test pins.
func TestPSICorrectnessSkewedDistribution(t *testing.T) {
	profile := psiProfile(0.25, equalBaseline())
	window := record.WindowSlice{PSI: []record.PSICounts{
		{Feature: "f", Total: 1000, Counts: map[int]int64{0: 400, 1: 300, 2: 200, 3: 100}},
	}}
	got := computePSI(record.PSIFeature{Bins: equalBaseline()}, window.PSI[0])
	want := 0.2282174096
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("PSI = %v, want %v ± 1e-4", got, want)
	}

	e, _ := Select(record.PSI)
	alerts, err := e.Evaluate(profile, window, time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("PSI %.4f is below threshold 0.25, expected no alert, got %+v", got, alerts)
	}
}

func TestPSIFiresAboveThreshold(t *testing.T) {
	profile := psiProfile(0.1, equalBaseline())
	window := record.WindowSlice{PSI: []record.PSICounts{
		{Feature: "f", Total: 1000, Counts: map[int]int64{0: 400, 1: 300, 2: 200, 3: 100}},
	}}
	e, _ := Select(record.PSI)
	alerts, err := e.Evaluate(profile, window, time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != "psi_threshold" {
		t.Fatalf("got %+v, want one psi_threshold alert", alerts)
	}
}

func TestPSILaplaceSmoothing(t *testing.T) {
	baseline := []record.Bin{{ID: 0, Proportion: 0}, {ID: 1, Proportion: 1}}
	profile := psiProfile(0.25, baseline)
	window := record.WindowSlice{PSI: []record.PSICounts{
		{Feature: "f", Total: 100, Counts: map[int]int64{1: 100}},
	}}
	got := computePSI(record.PSIFeature{Bins: baseline}, window.PSI[0])
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("PSI with a zero baseline bin should be smoothed, got %v", got)
	}
	_ = profile
}
