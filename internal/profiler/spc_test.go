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
	"testing"
	"time"
)

func TestC4Asymptotic(t *testing.T) {
	// For n >= 25, c4 must stay within 1e-5 of the exact closed form,
	// including past the switch to the asymptotic form at n = 60.
	for _, n := range []int{25, 30, 50, 100} {
		exact := math.Sqrt(2/(float64(n)-1)) * math.Gamma(float64(n)/2) / math.Gamma((float64(n)-1)/2)
		got := c4(n)
		if math.Abs(exact-got) > 1e-5 {
			t.Errorf("c4(%d): %v vs exact %v diverge by more than 1e-5", n, got, exact)
		}
	}
}

func TestC4SmallN(t *testing.T) {
	// c4(2) has a known closed form: sqrt(2/pi).
	want := math.Sqrt(2 / math.Pi)
	got := c4(2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("c4(2) = %v, want %v", got, want)
	}
}

func TestMeanStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean, sd := meanStdDev(values)
	if math.Abs(mean-5) > 1e-9 {
		t.Errorf("mean = %v, want 5", mean)
	}
	// population variance here is 4; sample variance (n-1 divisor) is
	// 32/7.
	wantSD := math.Sqrt(32.0 / 7.0)
	if math.Abs(sd-wantSD) > 1e-9 {
		t.Errorf("stddev = %v, want %v", sd, wantSD)
	}
}

func TestBuildSPCProfileOrdersFeatures(t *testing.T) {
	m := NewMatrix([]string{"b", "a"}, map[string][]float64{
		"a": {1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		"b": {2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
	})
	profile, err := BuildSPCProfile(m, DefaultSPCConfig(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("BuildSPCProfile: %v", err)
	}
	if got := profile.FeaturesToMonitor; len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("FeaturesToMonitor = %v, want [b a]", got)
	}
	if profile.Features["a"].Center != 1 {
		t.Errorf("feature a center = %v, want 1", profile.Features["a"].Center)
	}
	if profile.Features["b"].Center != 2 {
		t.Errorf("feature b center = %v, want 2", profile.Features["b"].Center)
	}
}

func TestBuildSPCProfileEmptyInput(t *testing.T) {
	m := NewMatrix(nil, nil)
	if _, err := BuildSPCProfile(m, DefaultSPCConfig(), time.Now()); err == nil {
		t.Fatal("expected EmptyInput error, got nil")
	}
}

func TestBuildSPCProfileNonFinite(t *testing.T) {
	m := NewMatrix([]string{"a"}, map[string][]float64{"a": {1, 2, math.NaN()}})
	_, err := BuildSPCProfile(m, DefaultSPCConfig(), time.Now())
	if err == nil {
		t.Fatal("expected NonFinite error, got nil")
	}
	pe, ok := err.(*Error)
	if !ok || pe.Kind != NonFinite {
		t.Fatalf("expected NonFinite profiler error, got %v", err)
	}
}
