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

import "scouter/pkg/record"

// ProfileCustom builds a CustomProfile straight from caller-supplied
// metrics: no data scan, just a validated pass-through for the Custom
// (and, via ProfileLLM, LLM) profiler.
func ProfileCustom(metrics map[string]record.CustomMetric) (*record.CustomProfile, error) {
	if len(metrics) == 0 {
		return nil, newError(EmptyInput, "", "no metrics supplied")
	}
	for name, m := range metrics {
		if err := validateCustomMetric(name, m); err != nil {
			return nil, err
		}
	}
	out := make(map[string]record.CustomMetric, len(metrics))
	for k, v := range metrics {
		out[k] = v
	}
	return &record.CustomProfile{Metrics: out}, nil
}

// ProfileLLM builds an LLMProfile, identical contract to ProfileCustom but
// over LLM-scored metrics.
func ProfileLLM(metrics map[string]record.CustomMetric) (*record.LLMProfile, error) {
	custom, err := ProfileCustom(metrics)
	if err != nil {
		return nil, err
	}
	return &record.LLMProfile{Metrics: custom.Metrics}, nil
}

func validateCustomMetric(name string, m record.CustomMetric) error {
	if !m.Threshold.Valid() {
		return newError(InvalidConfig, name, "unknown threshold kind %q", m.Threshold)
	}
	if m.Threshold == record.Outside && m.ThresholdValue == nil {
		return newError(InvalidConfig, name, "Outside threshold requires threshold_value")
	}
	if !isFinite(m.Baseline) {
		return newError(NonFinite, name, "baseline is non-finite")
	}
	if m.ThresholdValue != nil && !isFinite(*m.ThresholdValue) {
		return newError(NonFinite, name, "threshold_value is non-finite")
	}
	return nil
}
