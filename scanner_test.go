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

package ant

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extendedBroadcast builds a channel 0 broadcast payload carrying the
// channel ID extension for the given transmitter.
func extendedBroadcast(client ClientID, data [8]byte) []byte {
	payload := make([]byte, 0, 14)
	payload = append(payload, 0x00)
	payload = append(payload, data[:]...)
	payload = append(payload, extFlagChannelID)
	var id [2]byte
	binary.LittleEndian.PutUint16(id[:], client.DeviceID)
	payload = append(payload, id[0], id[1], client.DeviceType, client.TransmissionType)
	return payload
}

func TestScannerStartSequence(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)
	require.NoError(t, scanner.Start(0))

	assert.Equal(t, []byte{
		MsgAssignChannel,
		MsgSetChannelID,
		MsgEnableExtRxMessages,
		MsgSetChannelRFFreq,
		MsgOpenRxScanMode,
	}, mock.SentIDs())

	writes := mock.Writes()
	// Receive-only assignment with a full wildcard ID.
	assert.Equal(t, []byte{0x00, ChannelTypeReceiveOnly, 0x00}, writes[0].Payload)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00}, writes[1].Payload)
}

func TestScannerDeviceTypeFilter(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)
	require.NoError(t, scanner.Start(120))

	writes := mock.Writes()
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 120, 0x00}, writes[1].Payload)
}

func TestScannerFoundAndUpdate(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)

	found := make(chan ClientID, 4)
	updated := make(chan ClientID, 4)
	scanner.OnFound(func(c ClientID, _ []byte) { found <- c })
	scanner.OnUpdate(func(c ClientID, _ CommonData) { updated <- c })

	require.NoError(t, scanner.Start(0))

	strap := ClientID{DeviceID: 0x1234, DeviceType: 120, TransmissionType: 1}
	cadence := ClientID{DeviceID: 0x0042, DeviceType: 121, TransmissionType: 1}

	mock.Inject(MsgBroadcastData, extendedBroadcast(strap, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	mock.Inject(MsgBroadcastData, extendedBroadcast(strap, [8]byte{8, 7, 6, 5, 4, 3, 2, 1}))
	mock.Inject(MsgBroadcastData, extendedBroadcast(cadence, [8]byte{9, 9, 9, 9, 9, 9, 9, 9}))

	// Each transmitter is announced once; every broadcast, the announcing
	// one included, also lands in the update stream.
	deadline := time.After(2 * time.Second)
	collect := func(ch chan ClientID) ClientID {
		select {
		case c := <-ch:
			return c
		case <-deadline:
			t.Fatal("scanner callback never fired")
			return ClientID{}
		}
	}

	assert.Equal(t, strap, collect(found))
	assert.Equal(t, strap, collect(updated))
	assert.Equal(t, strap, collect(updated))
	assert.Equal(t, cadence, collect(found))
	assert.Equal(t, cadence, collect(updated))

	devices := scanner.Devices()
	require.Len(t, devices, 2)
	// Sorted by device ID.
	assert.Equal(t, cadence, devices[0].Client)
	assert.Equal(t, strap, devices[1].Client)
	assert.Equal(t, uint64(2), devices[1].Messages)
	assert.Equal(t, [8]byte{8, 7, 6, 5, 4, 3, 2, 1}, devices[1].LastPayload)
}

func TestScannerUpdateIncludesFirstBroadcast(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)

	var mu sync.Mutex
	foundCount, updateCount := 0, 0
	scanner.OnFound(func(ClientID, []byte) {
		mu.Lock()
		foundCount++
		mu.Unlock()
	})
	scanner.OnUpdate(func(ClientID, CommonData) {
		mu.Lock()
		updateCount++
		mu.Unlock()
	})

	require.NoError(t, scanner.Start(0))

	strap := ClientID{DeviceID: 7, DeviceType: 120, TransmissionType: 1}
	mock.Inject(MsgBroadcastData, extendedBroadcast(strap, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	mock.Inject(MsgBroadcastData, extendedBroadcast(strap, [8]byte{1, 2, 3, 4, 5, 6, 7, 9}))

	// Two broadcasts from one transmitter: announced once, updated twice.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return updateCount == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, foundCount)
	assert.Equal(t, 2, updateCount)
}

func TestScannerAccumulatesCommonData(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)

	updates := make(chan CommonData, 4)
	scanner.OnUpdate(func(_ ClientID, common CommonData) { updates <- common })
	require.NoError(t, scanner.Start(0))

	strap := ClientID{DeviceID: 9, DeviceType: 120, TransmissionType: 1}
	// Manufacturer info: hw rev 2, manufacturer 0x000F, model 0x0203.
	mock.Inject(MsgBroadcastData, extendedBroadcast(strap,
		[8]byte{0x50, 0xFF, 0xFF, 0x02, 0x0F, 0x00, 0x03, 0x02}))
	// Battery status: 3.5 V (coarse 3 + 128/256), status good, 2 s ticks.
	mock.Inject(MsgBroadcastData, extendedBroadcast(strap,
		[8]byte{0x52, 0xFF, 0xFF, 0x10, 0x00, 0x00, 0x80, 0x80 | 0x20 | 0x03}))

	deadline := time.After(2 * time.Second)
	collect := func() CommonData {
		select {
		case c := <-updates:
			return c
		case <-deadline:
			t.Fatal("scanner update never fired")
			return CommonData{}
		}
	}

	first := collect()
	assert.Equal(t, uint16(0x000F), first.ManufacturerID)
	assert.Equal(t, uint16(0x0203), first.ModelNumber)
	assert.Equal(t, byte(2), first.HardwareRevision)

	// The second update still carries the manufacturer page's fields.
	second := collect()
	assert.Equal(t, uint16(0x000F), second.ManufacturerID)
	assert.Equal(t, BatteryStatusGood, second.BatteryStatus)
	assert.InDelta(t, 3.5, second.BatteryVoltage, 0.001)
	assert.Equal(t, 32*time.Second, second.CumulativeOperatingTime)

	devices := scanner.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, uint16(0x000F), devices[0].Common.ManufacturerID)
}

func TestScannerStartConcurrent(t *testing.T) {
	t.Parallel()

	node, _ := newTestNode(t)
	scanner := NewScanner(node)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- scanner.Start(0)
		}()
	}
	wg.Wait()
	close(errs)

	// Exactly one Start wins channel 0; the loser reports the scanner busy.
	var ok, busy int
	for err := range errs {
		if err == nil {
			ok++
		} else if assert.ErrorIs(t, err, ErrInvalidParameter) {
			busy++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, busy)
}

func TestScannerIgnoresPlainBroadcasts(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)

	found := make(chan ClientID, 1)
	scanner.OnFound(func(c ClientID, _ []byte) { found <- c })
	require.NoError(t, scanner.Start(0))

	// No channel ID extension, so the transmitter cannot be attributed.
	mock.Inject(MsgBroadcastData, []byte{0x00, 1, 2, 3, 4, 5, 6, 7, 8})

	select {
	case c := <-found:
		t.Fatalf("unattributable broadcast reported as %v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScannerNeedsChannelZero(t *testing.T) {
	t.Parallel()

	node, _ := newTestNode(t)
	// Occupy channel 0 so the scanner cannot have it.
	_, err := node.NewChannel()
	require.NoError(t, err)

	scanner := NewScanner(node)
	err = scanner.Start(0)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestScannerStop(t *testing.T) {
	t.Parallel()

	node, mock := newTestNode(t)
	scanner := NewScanner(node)
	require.NoError(t, scanner.Start(0))

	require.NoError(t, scanner.Stop())
	// Stop is idempotent.
	require.NoError(t, scanner.Stop())

	ids := mock.SentIDs()
	assert.Contains(t, ids, MsgCloseChannel)
	assert.Contains(t, ids, MsgUnassignChannel)

	// The radio is free for regular channels again.
	ch, err := node.NewChannel()
	require.NoError(t, err)
	assert.Equal(t, byte(0), ch.Number())
}

func TestScannerStartTwice(t *testing.T) {
	t.Parallel()

	node, _ := newTestNode(t)
	scanner := NewScanner(node)
	require.NoError(t, scanner.Start(0))

	err := scanner.Start(0)
	require.ErrorIs(t, err, ErrInvalidParameter)
}
