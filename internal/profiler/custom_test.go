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

package profiler

import (
	"testing"

	"scouter/pkg/record"
)

func TestProfileCustomOutsideRequiresThresholdValue(t *testing.T) {
	_, err := ProfileCustom(map[string]record.CustomMetric{
		"latency_ms": {Baseline: 100, Threshold: record.Outside},
	})
	if err == nil {
		t.Fatal("expected InvalidConfig error for Outside without threshold_value")
	}
}

func TestProfileCustomPassThrough(t *testing.T) {
	tv := 20.0
	profile, err := ProfileCustom(map[string]record.CustomMetric{
		"latency_ms": {Baseline: 100, Threshold: record.Above, ThresholdValue: &tv},
	})
	if err != nil {
		t.Fatalf("ProfileCustom: %v", err)
	}
	got := profile.Metrics["latency_ms"]
	if got.Baseline != 100 || got.Threshold != record.Above || *got.ThresholdValue != 20 {
		t.Errorf("unexpected metric: %+v", got)
	}
}

func TestProfileCustomEmpty(t *testing.T) {
	if _, err := ProfileCustom(nil); err == nil {
		t.Fatal("expected EmptyInput error")
	}
}
