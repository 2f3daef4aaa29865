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

package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 6 fields with seconds precision and no timezone
// literals (schedules are interpreted in whatever location `now` carries —
// the scheduler always calls with UTC `now`).
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextAfter parses schedule and returns the next activation strictly after
// now.
func nextAfter(schedule string, now time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: invalid cron schedule %q: %w", schedule, err)
	}
	return sched.Next(now), nil
}

// ValidateSchedule reports whether schedule parses as a valid 6-field cron
// expression. Used at entity-registration time.
func ValidateSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}
