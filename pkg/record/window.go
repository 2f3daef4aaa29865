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

import "time"

// Window is the half-open time span [Start, End) a read_window query and
// an evaluation tick operate over.
type Window struct {
	Start time.Time
	End   time.Time
}

// SPCSeries is one feature's time-ordered observation series within a
// window, as returned by read_window for drift_type=SPC.
type SPCSeries struct {
	Feature string
	Points  []SPCPoint
}

// SPCPoint is one (created_at, value) pair in an SPC series.
type SPCPoint struct {
	CreatedAt time.Time
	Value     float64
}

// PSICounts is one feature's per-bin observed counts within a window, as
// returned by read_window for drift_type=PSI. Features that fail the
// minimum-sample-size rule are omitted from the slice entirely.
type PSICounts struct {
	Feature string
	Counts  map[int]int64 // bin_id -> count
	Total   int64
}

// MetricAverage is one metric's mean value within a window, as returned by
// read_window for drift_type=CUSTOM or drift_type=LLM.
type MetricAverage struct {
	Metric  string
	Average float64
	Count   int64
}

// WindowSlice is the polymorphic result of read_window: exactly one of the
// three fields is populated, matching the entity's drift_type.
type WindowSlice struct {
	Window Window

	SPC    []SPCSeries
	PSI    []PSICounts
	Custom []MetricAverage // also used for drift_type=LLM
}
