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
	"testing"
	"time"

	"scouter/pkg/record"
)

func customProfileFor(kind record.DriftType, metric string, m record.CustomMetric) record.DriftProfile {
	metrics := map[string]record.CustomMetric{metric: m}
	p := record.DriftProfile{EntityID: 1, Kind: kind}
	if kind == record.LLM {
		p.LLM = &record.LLMProfile{Metrics: metrics}
	} else {
		p.Custom = &record.CustomProfile{Metrics: metrics}
	}
	return p
}

// TestCustomAboveThreshold checks the Above comparator's strict boundary.
func TestCustomAboveThreshold(t *testing.T) {
	tv := 0.02
	profile := customProfileFor(record.Custom, "m", record.CustomMetric{
		Baseline: 0.03, Threshold: record.Above, ThresholdValue: &tv,
	})
	e, _ := Select(record.Custom)
	now := time.Now()

	alerts, err := e.Evaluate(profile, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "m", Average: 0.051}}}, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("observed 0.051 > 0.05: got %d alerts, want 1", len(alerts))
	}

	alerts, err = e.Evaluate(profile, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "m", Average: 0.049}}}, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("observed 0.049 <= 0.05: got %d alerts, want 0", len(alerts))
	}
}

// TestCustomLatencyAbove exercises a realistic latency metric above its
// baseline plus threshold value.
func TestCustomLatencyAbove(t *testing.T) {
	tv := 20.0
	profile := customProfileFor(record.Custom, "latency_ms", record.CustomMetric{
		Baseline: 100, Threshold: record.Above, ThresholdValue: &tv,
	})
	e, _ := Select(record.Custom)
	now := time.Now()

	alerts, _ := e.Evaluate(profile, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "latency_ms", Average: 130}}}, now)
	if len(alerts) != 1 {
		t.Fatalf("average=130: got %d alerts, want 1", len(alerts))
	}
	alerts, _ = e.Evaluate(profile, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "latency_ms", Average: 115}}}, now)
	if len(alerts) != 0 {
		t.Fatalf("average=115: got %d alerts, want 0", len(alerts))
	}
}

func TestCustomBelowAndOutside(t *testing.T) {
	e, _ := Select(record.Custom)
	now := time.Now()

	below := customProfileFor(record.Custom, "m", record.CustomMetric{Baseline: 10, Threshold: record.Below, ThresholdValue: floatPtr(2)})
	alerts, _ := e.Evaluate(below, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "m", Average: 7.5}}}, now)
	if len(alerts) != 1 {
		t.Fatalf("7.5 < 10-2: want alert, got %d", len(alerts))
	}

	outside := customProfileFor(record.Custom, "m", record.CustomMetric{Baseline: 10, Threshold: record.Outside, ThresholdValue: floatPtr(1)})
	alerts, _ = e.Evaluate(outside, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "m", Average: 11.5}}}, now)
	if len(alerts) != 1 {
		t.Fatalf("|11.5-10|=1.5 > 1: want alert, got %d", len(alerts))
	}
	alerts, _ = e.Evaluate(outside, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "m", Average: 10.5}}}, now)
	if len(alerts) != 0 {
		t.Fatalf("|10.5-10|=0.5 <= 1: want no alert, got %d", len(alerts))
	}
}

func TestLLMUsesSameContractAsCustom(t *testing.T) {
	profile := customProfileFor(record.LLM, "toxicity", record.CustomMetric{Baseline: 0.01, Threshold: record.Above, ThresholdValue: floatPtr(0.05)})
	e, _ := Select(record.LLM)
	alerts, err := e.Evaluate(profile, record.WindowSlice{Custom: []record.MetricAverage{{Metric: "toxicity", Average: 0.1}}}, time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 1 || alerts[0].DriftType != record.LLM {
		t.Fatalf("got %+v, want one LLM alert", alerts)
	}
}

func floatPtr(v float64) *float64 { return &v }
