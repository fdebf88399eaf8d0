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

// Package heartrate implements the ANT+ heart rate monitor device profile.
package heartrate

import (
	"encoding/binary"
	"fmt"

	ant "github.com/AntPlusProject/go-ant"
)

// ANT+ heart rate profile constants.
const (
	// DeviceType identifies heart rate monitors on the network.
	DeviceType byte = 120
	// ChannelPeriod is 8070 counts, about 4.06 Hz.
	ChannelPeriod uint16 = 8070
)

// Data is one decoded heart rate broadcast. Every page carries the current
// heart rate; older straps rotate page 4 in with the previous beat time.
type Data struct {
	// Page is the data page number with the toggle bit masked off.
	Page byte
	// BeatTime is the time of the last beat event in seconds, rolling over
	// every 64 seconds.
	BeatTime float64
	// PreviousBeatTime is the beat before BeatTime, only on page 4.
	PreviousBeatTime float64
	// BeatCount rolls over at 255.
	BeatCount byte
	// ComputedHeartRate is the strap's own BPM computation, 0 when invalid.
	ComputedHeartRate byte
}

// beatTimeUnit converts 1/1024 second ticks to seconds.
const beatTimeUnit = 1.0 / 1024.0

// Decode parses one 8-byte broadcast payload. data must be the payload
// after the channel number byte; an extended trailer is ignored.
func Decode(data []byte) (Data, error) {
	if len(data) < 8 {
		return Data{}, fmt.Errorf("heart rate page needs 8 bytes, got %d: %w",
			len(data), ant.ErrMalformedFrame)
	}

	d := Data{
		// Bit 7 toggles every fourth message to prove the strap is alive.
		Page:              data[0] & 0x7F,
		BeatTime:          float64(binary.LittleEndian.Uint16(data[4:6])) * beatTimeUnit,
		BeatCount:         data[6],
		ComputedHeartRate: data[7],
	}
	if d.Page == 4 {
		d.PreviousBeatTime = float64(binary.LittleEndian.Uint16(data[2:4])) * beatTimeUnit
	}
	return d, nil
}

// Monitor is an open heart rate channel delivering decoded strap data.
type Monitor struct {
	ch *ant.Channel

	onData func(Data)

	// lastBeat deduplicates the ~4 Hz rebroadcasts of the same beat.
	lastBeat int
}

// Open pairs a channel with a heart rate strap and starts delivery. A
// wildcard client pairs with the strongest strap in range. fn runs on the
// node's dispatch goroutine, once per new beat.
func Open(node *ant.Node, client ant.ClientID, fn func(Data)) (*Monitor, error) {
	if client.DeviceType != 0 && client.DeviceType != DeviceType {
		return nil, fmt.Errorf("device type %d is not a heart rate monitor: %w",
			client.DeviceType, ant.ErrInvalidParameter)
	}
	client.DeviceType = DeviceType

	ch, err := node.NewChannel()
	if err != nil {
		return nil, err
	}

	m := &Monitor{ch: ch, onData: fn, lastBeat: -1}
	ch.OnBroadcast(m.handleBroadcast)

	if err := ch.Open(client, ChannelPeriod, ant.ANTPlusRFFrequency); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return m, nil
}

func (m *Monitor) handleBroadcast(data []byte) {
	d, err := Decode(data)
	if err != nil {
		return
	}
	if int(d.BeatCount) == m.lastBeat {
		return
	}
	m.lastBeat = int(d.BeatCount)
	if m.onData != nil {
		m.onData(d)
	}
}

// Channel exposes the underlying channel for event callbacks and tuning.
func (m *Monitor) Channel() *ant.Channel {
	return m.ch
}

// Close shuts the channel down and releases its slot.
func (m *Monitor) Close() error {
	return m.ch.Close()
}
