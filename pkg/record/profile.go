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

package record

import (
	"fmt"
	"math"
	"time"
)

// DriftProfile is the baseline artifact bound to a DriftEntity. It is a
// tagged union over the four drift types: exactly one of SPC, PSI, Custom,
// or LLM is populated, selected by Kind.
//
// Profiles travel through the system as this struct (not an interface)
// because they round-trip through JSON in the drift_profile table; a single
// struct with a discriminant is simpler to (de)serialize than an interface
// requiring a custom unmarshaler.
type DriftProfile struct {
	EntityID int64     `json:"entity_id"`
	Kind     DriftType `json:"kind"`

	SPC    *SPCProfile    `json:"spc,omitempty"`
	PSI    *PSIProfile    `json:"psi,omitempty"`
	Custom *CustomProfile `json:"custom,omitempty"`
	LLM    *LLMProfile    `json:"llm,omitempty"`
}

// FeatureSPCProfile holds the control-chart baseline for one feature.
type FeatureSPCProfile struct {
	Center    float64   `json:"center"`
	OneStdDev float64   `json:"one_stddev"`
	UCL       float64   `json:"ucl"`
	LCL       float64   `json:"lcl"`
	Timestamp time.Time `json:"timestamp"`
}

// SPCAlertRule is the 8-digit rule-string contract: eight non-negative
// thresholds, one per control-chart rule, "0" disabling that rule.
// DefaultSPCAlertRule below matches the standard default.
type SPCAlertRule struct {
	Thresholds [8]int `json:"thresholds"`
}

// DefaultSPCAlertRule is the rule string "8 16 4 8 2 4 1 1".
func DefaultSPCAlertRule() SPCAlertRule {
	return SPCAlertRule{Thresholds: [8]int{8, 16, 4, 8, 2, 4, 1, 1}}
}

// ParseSPCAlertRule parses the external rule-string representation: eight
// space-separated non-negative integers.
func ParseSPCAlertRule(s string) (SPCAlertRule, error) {
	var rule SPCAlertRule
	var vals [8]int
	n, err := fmt.Sscanf(s, "%d %d %d %d %d %d %d %d",
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7])
	if err != nil || n != 8 {
		return rule, fmt.Errorf("record: invalid SPC rule string %q: want 8 integers", s)
	}
	for _, v := range vals {
		if v < 0 {
			return rule, fmt.Errorf("record: invalid SPC rule string %q: negative threshold", s)
		}
	}
	rule.Thresholds = vals
	return rule, nil
}

// String renders the rule back into the external space-separated form.
func (r SPCAlertRule) String() string {
	return fmt.Sprintf("%d %d %d %d %d %d %d %d",
		r.Thresholds[0], r.Thresholds[1], r.Thresholds[2], r.Thresholds[3],
		r.Thresholds[4], r.Thresholds[5], r.Thresholds[6], r.Thresholds[7])
}

// SPCProfile is the baseline artifact for drift_type=SPC.
type SPCProfile struct {
	Features          map[string]FeatureSPCProfile `json:"features"`
	AlertRule         SPCAlertRule                 `json:"alert_rule"`
	FeaturesToMonitor []string                     `json:"features_to_monitor"`
}

// Bin is one bucket of a PSI baseline distribution. Numeric features bin by
// equal-frequency edges: half-open [Lower, Upper) except the final bin of a
// feature, which is closed on both ends. Categorical features bin by
// distinct value instead, with Value set and Lower/Upper both zero.
type Bin struct {
	ID         int     `json:"id"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Value      string  `json:"value,omitempty"`
	Proportion float64 `json:"proportion"`
}

// PSIFeature is the baseline bin layout for one feature.
type PSIFeature struct {
	Bins []Bin `json:"bins"`
}

// Validate checks the PSI bin-layout invariant: at least 2 bins, each
// proportion in [0,1], summing to 1 within eps.
func (f PSIFeature) Validate(eps float64) error {
	if len(f.Bins) < 2 {
		return fmt.Errorf("record: PSI feature needs >= 2 bins, got %d", len(f.Bins))
	}
	var sum float64
	for _, b := range f.Bins {
		if b.Proportion < 0 || b.Proportion > 1 {
			return fmt.Errorf("record: PSI bin %d proportion %v out of [0,1]", b.ID, b.Proportion)
		}
		sum += b.Proportion
	}
	if math.Abs(sum-1) > eps {
		return fmt.Errorf("record: PSI bin proportions sum to %v, want 1±%v", sum, eps)
	}
	return nil
}

// PSIProfile is the baseline artifact for drift_type=PSI.
type PSIProfile struct {
	Features          map[string]PSIFeature `json:"features"`
	Threshold         float64               `json:"psi_threshold"`
	FeaturesToMonitor []string              `json:"features_to_monitor"`
}

// DefaultPSIThreshold is the standard default psi_threshold.
const DefaultPSIThreshold = 0.25

// AlertThreshold selects the comparison a Custom or LLM metric fires on.
type AlertThreshold string

const (
	Above   AlertThreshold = "above"
	Below   AlertThreshold = "below"
	Outside AlertThreshold = "outside"
)

// Valid reports whether t is one of the three known threshold kinds.
func (t AlertThreshold) Valid() bool {
	switch t {
	case Above, Below, Outside:
		return true
	default:
		return false
	}
}

// CustomMetric is one caller-supplied baseline and its firing rule. A nil
// ThresholdValue means Above/Below compare against the bare baseline;
// Outside requires a non-nil ThresholdValue.
type CustomMetric struct {
	Baseline       float64        `json:"baseline"`
	Threshold      AlertThreshold `json:"threshold"`
	ThresholdValue *float64       `json:"threshold_value,omitempty"`
}

// CustomProfile is the baseline artifact for drift_type=CUSTOM.
type CustomProfile struct {
	Metrics map[string]CustomMetric `json:"metrics"`
}

// LLMProfile is the baseline artifact for drift_type=LLM: same shape as
// CustomProfile, evaluated against scored LLM events rather than sampled
// feature values.
type LLMProfile struct {
	Metrics map[string]CustomMetric `json:"metrics"`
}

// Validate checks the cross-cutting profile invariants: the profile's
// entity_id/kind agree with the given entity, and (for PSI) every
// feature's bins are well-formed.
func (p DriftProfile) Validate(entity DriftEntity, eps float64) error {
	if p.EntityID != entity.ID {
		return fmt.Errorf("record: profile entity_id %d does not match entity %d", p.EntityID, entity.ID)
	}
	if p.Kind != entity.DriftType {
		return fmt.Errorf("record: profile kind %s does not match entity drift_type %s", p.Kind, entity.DriftType)
	}
	switch p.Kind {
	case SPC:
		if p.SPC == nil {
			return fmt.Errorf("record: SPC profile missing SPC payload")
		}
	case PSI:
		if p.PSI == nil {
			return fmt.Errorf("record: PSI profile missing PSI payload")
		}
		for name, f := range p.PSI.Features {
			if err := f.Validate(eps); err != nil {
				return fmt.Errorf("record: feature %s: %w", name, err)
			}
		}
	case Custom:
		if p.Custom == nil {
			return fmt.Errorf("record: Custom profile missing Custom payload")
		}
	case LLM:
		if p.LLM == nil {
			return fmt.Errorf("record: LLM profile missing LLM payload")
		}
	default:
		return fmt.Errorf("record: unknown drift kind %q", p.Kind)
	}
	return nil
}
