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
	"sort"

	"scouter/pkg/record"
)

// PSIConfig holds the method-specific knobs for the PSI profiler.
type PSIConfig struct {
	// NumBins is the number of equal-frequency bins per feature. Defaults
	// to 10 (deciles).
	NumBins   int
	Threshold float64
}

// DefaultPSIConfig returns the standard defaults: 10 bins, psi_threshold
// 0.25.
func DefaultPSIConfig() PSIConfig {
	return PSIConfig{NumBins: 10, Threshold: record.DefaultPSIThreshold}
}

// profilePSIFeature computes one feature's equal-frequency bin layout from
// its training column. Numeric edges are half-open [lower, upper) except
// the final bin, which is closed on both ends.
func profilePSIFeature(values []float64, cfg PSIConfig) record.PSIFeature {
	numBins := cfg.NumBins
	if numBins <= 0 {
		numBins = 10
	}
	n := len(values)
	if numBins > n {
		numBins = n
	}
	if numBins < 1 {
		numBins = 1
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	bins := make([]record.Bin, 0, numBins)
	quantileEdges := make([]float64, numBins+1)
	for i := 0; i <= numBins; i++ {
		quantileEdges[i] = quantile(sorted, float64(i)/float64(numBins))
	}

	for i := 0; i < numBins; i++ {
		lower := quantileEdges[i]
		upper := quantileEdges[i+1]
		var count int
		for _, v := range sorted {
			if i == numBins-1 {
				if v >= lower && v <= upper {
					count++
				}
			} else if v >= lower && v < upper {
				count++
			}
		}
		bins = append(bins, record.Bin{
			ID:         i,
			Lower:      lower,
			Upper:      upper,
			Proportion: float64(count) / float64(n),
		})
	}
	return record.PSIFeature{Bins: bins}
}

// profilePSICategoricalFeature computes one categorical feature's bin
// layout: one bin per distinct value, proportion = count/total. Bin IDs are
// assigned in sorted value order so the layout is deterministic across
// runs.
func profilePSICategoricalFeature(values []string) record.PSIFeature {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	distinct := make([]string, 0, len(counts))
	for v := range counts {
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)

	n := len(values)
	bins := make([]record.Bin, 0, len(distinct))
	for i, v := range distinct {
		bins = append(bins, record.Bin{
			ID:         i,
			Value:      v,
			Proportion: float64(counts[v]) / float64(n),
		})
	}
	return record.PSIFeature{Bins: bins}
}

// quantile returns the value at fraction q (0..1) of already-sorted data
// using linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
