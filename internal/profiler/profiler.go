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
	"time"

	"golang.org/x/sync/errgroup"

	"scouter/pkg/record"
)

// BuildSPCProfile computes a SPCProfile from a training matrix, one
// feature's statistics computed in parallel with the rest, preserving
// matrix.Order in the output's FeaturesToMonitor.
func BuildSPCProfile(m Matrix, cfg SPCConfig, now time.Time) (*record.SPCProfile, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	results := make([]record.FeatureSPCProfile, len(m.Order))
	var g errgroup.Group
	for i, feature := range m.Order {
		i, feature := i, feature
		g.Go(func() error {
			results[i] = profileSPCFeature(m.Columns[feature], cfg, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	features := make(map[string]record.FeatureSPCProfile, len(m.Order))
	for i, feature := range m.Order {
		features[feature] = results[i]
	}

	rule := cfg.Rule
	if rule == (record.SPCAlertRule{}) {
		rule = record.DefaultSPCAlertRule()
	}

	return &record.SPCProfile{
		Features:          features,
		AlertRule:         rule,
		FeaturesToMonitor: append([]string(nil), m.Order...),
	}, nil
}

// BuildPSIProfile computes a PSIProfile from a training matrix, one
// feature's bin layout computed in parallel with the rest.
func BuildPSIProfile(m Matrix, cfg PSIConfig) (*record.PSIProfile, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	results := make([]record.PSIFeature, len(m.Order))
	var g errgroup.Group
	for i, feature := range m.Order {
		i, feature := i, feature
		g.Go(func() error {
			if m.isCategorical(feature) {
				results[i] = profilePSICategoricalFeature(m.Categorical[feature])
			} else {
				results[i] = profilePSIFeature(m.Columns[feature], cfg)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	features := make(map[string]record.PSIFeature, len(m.Order))
	for i, feature := range m.Order {
		features[feature] = results[i]
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = record.DefaultPSIThreshold
	}

	return &record.PSIProfile{
		Features:          features,
		Threshold:         threshold,
		FeaturesToMonitor: append([]string(nil), m.Order...),
	}, nil
}
