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

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ant "github.com/AntPlusProject/go-ant"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		want    Data
		wantErr bool
	}{
		{
			name: "page 0",
			// Beat at 2048/1024 = 2s, 42 beats, 75 bpm.
			data: []byte{0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x08, 42, 75},
			want: Data{Page: 0, BeatTime: 2.0, BeatCount: 42, ComputedHeartRate: 75},
		},
		{
			name: "page toggle bit masked",
			data: []byte{0x80, 0xFF, 0xFF, 0xFF, 0x00, 0x08, 42, 75},
			want: Data{Page: 0, BeatTime: 2.0, BeatCount: 42, ComputedHeartRate: 75},
		},
		{
			name: "page 4 with previous beat",
			// Previous beat at 1024/1024 = 1s.
			data: []byte{0x04, 0xFF, 0x00, 0x04, 0x00, 0x08, 43, 76},
			want: Data{Page: 4, BeatTime: 2.0, PreviousBeatTime: 1.0, BeatCount: 43, ComputedHeartRate: 76},
		},
		{
			name:    "short payload",
			data:    []byte{0x00, 0x01, 0x02},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeIgnoresExtendedTrailer(t *testing.T) {
	t.Parallel()

	data := []byte{0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x08, 42, 75,
		0x80, 0x34, 0x12, 120, 1}
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, byte(75), got.ComputedHeartRate)
}

func newTestNode(t *testing.T) (*ant.Node, *ant.MockTransport) {
	t.Helper()
	mock := ant.NewMockTransport()
	node, err := ant.NewNode(mock,
		ant.WithReadTimeout(10*time.Millisecond),
		ant.WithResponseTimeout(500*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Stop() })
	return node, mock
}

func TestOpenConfiguresProfileChannel(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	monitor, err := Open(node, ant.ClientID{DeviceID: 0x1234, TransmissionType: 1}, func(Data) {})
	require.NoError(t, err)
	defer monitor.Close()

	writes := mock.Writes()
	require.GreaterOrEqual(t, len(writes), 4)
	// The channel ID pins the heart rate device type.
	assert.Equal(t, ant.MsgSetChannelID, writes[1].ID)
	assert.Equal(t, []byte{0x00, 0x34, 0x12, DeviceType, 1}, writes[1].Payload)
	// 8070 counts, little endian.
	assert.Equal(t, ant.MsgSetChannelPeriod, writes[2].ID)
	assert.Equal(t, []byte{0x00, 0x86, 0x1F}, writes[2].Payload)
}

func TestOpenRejectsForeignDeviceType(t *testing.T) {
	t.Parallel()

	node, _ := newTestNode(t)
	_, err := Open(node, ant.ClientID{DeviceType: 121}, func(Data) {})
	require.ErrorIs(t, err, ant.ErrInvalidParameter)
}

func TestMonitorDeduplicatesBeats(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)

	beats := make(chan Data, 8)
	monitor, err := Open(node, ant.ClientID{}, func(d Data) { beats <- d })
	require.NoError(t, err)
	defer monitor.Close()

	page := func(count byte) []byte {
		return []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x08, count, 75}
	}
	// Straps rebroadcast each beat about four times.
	mock.Inject(ant.MsgBroadcastData, page(10))
	mock.Inject(ant.MsgBroadcastData, page(10))
	mock.Inject(ant.MsgBroadcastData, page(10))
	mock.Inject(ant.MsgBroadcastData, page(11))

	var got []byte
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case d := <-beats:
			got = append(got, d.BeatCount)
		case <-timeout:
			t.Fatalf("expected 2 beats, got %v", got)
		}
	}
	assert.Equal(t, []byte{10, 11}, got)

	select {
	case d := <-beats:
		t.Fatalf("duplicate beat delivered: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecordJSON(t *testing.T) {
	t.Parallel()

	rec := NewRecord(Data{
		BeatTime:          2.5,
		PreviousBeatTime:  1.5,
		BeatCount:         42,
		ComputedHeartRate: 75,
	}, 1000, 2000)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "heart_rate",
		"metadata": {"time": {"unit": "ns", "datum": 1000, "diff": 2000}},
		"data": {"bpm": 75, "beat": 42, "time": {"cur": 2.5, "prev": 1.5}}
	}`, string(raw))
}
