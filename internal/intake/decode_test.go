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

package intake

import (
	"encoding/json"
	"testing"

	"scouter/pkg/record"
)

func TestDecodeRecordEachDriftType(t *testing.T) {
	cases := []struct {
		driftType record.DriftType
		body      string
	}{
		{record.SPC, `{"entity_id":1,"created_at":"2026-01-01T00:00:00Z","feature":"f1","value":1.5}`},
		{record.PSI, `{"entity_id":1,"created_at":"2026-01-01T00:00:00Z","feature":"f1","bin_id":2,"bin_count":10}`},
		{record.Custom, `{"entity_id":1,"created_at":"2026-01-01T00:00:00Z","metric":"m1","value":3.2}`},
		{record.LLM, `{"entity_id":1,"created_at":"2026-01-01T00:00:00Z","metric":"m1","value":0.9}`},
	}
	for _, tc := range cases {
		rec, err := DecodeRecord(tc.driftType, json.RawMessage(tc.body))
		if err != nil {
			t.Fatalf("DecodeRecord(%s): %v", tc.driftType, err)
		}
		if rec.Kind() != tc.driftType {
			t.Fatalf("Kind() = %s, want %s", rec.Kind(), tc.driftType)
		}
		entityID, _ := rec.Entity()
		if entityID != 1 {
			t.Fatalf("entity_id = %d, want 1", entityID)
		}
	}
}

func TestDecodeRecordRejectsUnknownDriftType(t *testing.T) {
	if _, err := DecodeRecord(record.DriftType("BOGUS"), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for unknown drift_type")
	}
}

func TestDecodeRecordRejectsMalformedBody(t *testing.T) {
	if _, err := DecodeRecord(record.Custom, json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}
