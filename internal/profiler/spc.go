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
	"math"
	"time"

	"scouter/pkg/record"
)

// SPCConfig holds the method-specific knobs for the SPC profiler.
type SPCConfig struct {
	// SubgroupSize is the number of rows per subgroup used to compute the
	// pooled within-subgroup standard deviation. Defaults to 5.
	SubgroupSize int
	// SigmaMultiplier is k in the ±k·σ̂ control limits. Defaults to 3.
	SigmaMultiplier float64
	Rule            record.SPCAlertRule
}

// DefaultSPCConfig returns the standard defaults: subgroup size 5, k=3,
// the default 8-digit rule.
func DefaultSPCConfig() SPCConfig {
	return SPCConfig{SubgroupSize: 5, SigmaMultiplier: 3, Rule: record.DefaultSPCAlertRule()}
}

// c4 is the bias-correction factor for the sample standard deviation at
// subgroup size n: c4(n) = sqrt(2/(n-1)) * Gamma(n/2) / Gamma((n-1)/2).
// math.Gamma overflows once n passes 343, and from n = 60 up the
// asymptotic approximation 1 - 1/(4n-4) is within 1e-5 of the closed form,
// so this uses the approximation there instead.
func c4(n int) float64 {
	if n <= 1 {
		return 1
	}
	if n >= 60 {
		return 1 - 1/(4*float64(n)-4)
	}
	return math.Sqrt(2/(float64(n)-1)) * math.Gamma(float64(n)/2) / math.Gamma((float64(n)-1)/2)
}

// profileSPCFeature computes one feature's FeatureSPCProfile from its
// training column.
func profileSPCFeature(values []float64, cfg SPCConfig, now time.Time) record.FeatureSPCProfile {
	n := len(values)
	subgroup := cfg.SubgroupSize
	if subgroup <= 0 {
		subgroup = 5
	}
	if subgroup > n {
		subgroup = n
	}

	nGroups := n / subgroup
	if nGroups == 0 {
		nGroups = 1
		subgroup = n
	}

	var sumOfMeans, sumOfSigmas float64
	for g := 0; g < nGroups; g++ {
		start := g * subgroup
		end := start + subgroup
		if end > n {
			end = n
		}
		group := values[start:end]
		mean, sd := meanStdDev(group)
		sumOfMeans += mean
		sumOfSigmas += sd
	}
	grandMean := sumOfMeans / float64(nGroups)
	pooledSigma := (sumOfSigmas / float64(nGroups)) / c4(subgroup)

	k := cfg.SigmaMultiplier
	if k <= 0 {
		k = 3
	}

	return record.FeatureSPCProfile{
		Center:    grandMean,
		OneStdDev: pooledSigma,
		UCL:       grandMean + k*pooledSigma,
		LCL:       grandMean - k*pooledSigma,
		Timestamp: now,
	}
}

// meanStdDev returns the sample mean and sample standard deviation
// (Bessel's correction, divisor n-1) of values.
func meanStdDev(values []float64) (mean, stdDev float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
