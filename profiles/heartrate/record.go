// Copyright 2026 The AntPlus Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package heartrate

// RecordKind tags heart rate records in mixed JSON streams.
const RecordKind = "heart_rate"

// TimeMetadata locates a record on the capturing host's monotonic clock.
// datum is the session start; diff is nanoseconds since then.
type TimeMetadata struct {
	Unit  string `json:"unit"`
	Datum int64  `json:"datum"`
	Diff  int64  `json:"diff"`
}

// Metadata carries record provenance.
type Metadata struct {
	Time TimeMetadata `json:"time"`
}

// BeatTime pairs the current and previous beat timestamps in seconds.
type BeatTime struct {
	Cur  float64 `json:"cur"`
	Prev float64 `json:"prev"`
}

// RecordData is the measurement portion of a record.
type RecordData struct {
	BPM  int      `json:"bpm"`
	Beat int      `json:"beat"`
	Time BeatTime `json:"time"`
}

// Record is one heart beat as emitted on a JSON-lines stream.
type Record struct {
	Kind     string     `json:"kind"`
	Metadata Metadata   `json:"metadata"`
	Data     RecordData `json:"data"`
}

// NewRecord builds a record from decoded strap data. datum and diff are
// monotonic clock nanoseconds.
func NewRecord(d Data, datum, diff int64) Record {
	return Record{
		Kind: RecordKind,
		Metadata: Metadata{
			Time: TimeMetadata{Unit: "ns", Datum: datum, Diff: diff},
		},
		Data: RecordData{
			BPM:  int(d.ComputedHeartRate),
			Beat: int(d.BeatCount),
			Time: BeatTime{Cur: d.BeatTime, Prev: d.PreviousBeatTime},
		},
	}
}
