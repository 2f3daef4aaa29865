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

import "math"

// Matrix is a dense training matrix: Columns[feature] holds n values for
// that feature, all columns the same length. Categorical features live in
// Categorical instead of Columns, keyed the same way. A feature named in
// Order must appear in exactly one of the two maps. Column order is
// preserved as input order, and profiler output order follows it.
type Matrix struct {
	Order       []string
	Columns     map[string][]float64
	Categorical map[string][]string
}

// NewMatrix builds a Matrix of numeric columns, preserving the given
// feature order regardless of map iteration order.
func NewMatrix(order []string, columns map[string][]float64) Matrix {
	return Matrix{Order: order, Columns: columns}
}

// NewCategoricalMatrix builds a Matrix of categorical columns, preserving
// the given feature order regardless of map iteration order.
func NewCategoricalMatrix(order []string, columns map[string][]string) Matrix {
	return Matrix{Order: order, Categorical: columns}
}

func (m Matrix) validate() error {
	if len(m.Order) == 0 {
		return newError(EmptyInput, "", "matrix has no features")
	}
	for _, f := range m.Order {
		if col, ok := m.Columns[f]; ok {
			if len(col) == 0 {
				return newError(EmptyInput, f, "column has no rows")
			}
			for _, v := range col {
				if !isFinite(v) {
					return newError(NonFinite, f, "non-finite value %v", v)
				}
			}
			continue
		}
		if cat, ok := m.Categorical[f]; ok {
			if len(cat) == 0 {
				return newError(EmptyInput, f, "column has no rows")
			}
			continue
		}
		return newError(EmptyInput, f, "column has no rows")
	}
	return nil
}

func (m Matrix) isCategorical(feature string) bool {
	_, ok := m.Categorical[feature]
	return ok
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
