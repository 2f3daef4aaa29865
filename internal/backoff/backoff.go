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

// Package backoff implements the capped-doubling retry delay shared by the
// ingestion queue's flush retries and the scheduler's failure backoff.
// Both need the identical "double from a base, cap at a ceiling" shape;
// this package is the one place that shape is defined.
package backoff

import (
	"math/rand"
	"time"
)

// Policy is a capped-doubling backoff: delay(n) = min(base * 2^n, cap).
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Ingest is the ingestion queue's flush-retry policy: base 100ms, cap 30s.
func Ingest() Policy {
	return Policy{Base: 100 * time.Millisecond, Cap: 30 * time.Second}
}

// Scheduler is the scheduler's tick-failure policy: base 30s, cap 15min.
func Scheduler() Policy {
	return Policy{Base: 30 * time.Second, Cap: 15 * time.Minute}
}

// Delay returns the backoff delay for the attempt'th consecutive failure
// (attempt starts at 0 for the first failure).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt && d < p.Cap; i++ {
		d *= 2
		if d > p.Cap {
			d = p.Cap
			break
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	return d
}

// Jitter returns d adjusted by a uniform random factor in [1-frac, 1+frac].
// Used for the scheduler's empty-claim poll_interval, jittered ±20%
// (frac = 0.2) to avoid synchronized polling across worker processes.
func Jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * frac
	return time.Duration(float64(d) * (1 + delta))
}
