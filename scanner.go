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
	"fmt"
	"sort"
	"time"

	"github.com/AntPlusProject/go-ant/internal/syncutil"
)

// DeviceEntry is one transmitter observed by a Scanner.
type DeviceEntry struct {
	Client    ClientID
	FirstSeen time.Time
	LastSeen  time.Time
	Messages  uint64
	// LastPayload is the most recent 8-byte broadcast payload.
	LastPayload [8]byte
	// Common accumulates the common pages seen from this transmitter.
	Common CommonData
}

// Scanner discovers nearby transmitters using continuous scan mode. Scan
// mode takes over the radio: every channel must be closed before Start, and
// no regular channel can open until the scanner stops.
//
// Each transmitter is reported once via OnFound; every broadcast, the first
// included, also reaches OnUpdate with the transmitter's accumulated common
// data. Both callbacks run on the node's dispatch goroutine.
type Scanner struct {
	node *Node
	ch   *Channel

	mu       syncutil.Mutex
	seen     map[ClientID]*DeviceEntry
	onFound  func(client ClientID, payload []byte)
	onUpdate func(client ClientID, common CommonData)
	running  bool
}

// NewScanner creates a scanner on the node. The node's network key must
// already be set for ANT+ transmitters to be visible.
func NewScanner(node *Node) *Scanner {
	return &Scanner{
		node: node,
		seen: make(map[ClientID]*DeviceEntry),
	}
}

// OnFound sets the callback for the first broadcast from a new transmitter.
// Must be set before Start.
func (s *Scanner) OnFound(fn func(client ClientID, payload []byte)) {
	s.mu.Lock()
	s.onFound = fn
	s.mu.Unlock()
}

// OnUpdate sets the callback invoked on every attributable broadcast with
// the transmitter's common data accumulated so far. Must be set before
// Start.
func (s *Scanner) OnUpdate(fn func(client ClientID, common CommonData)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Start opens continuous scan mode on the ANT+ frequency. deviceType
// filters which profile is reported; zero scans every type.
func (s *Scanner) Start(deviceType byte) error {
	// Claim the scanner in the same critical section as the check so two
	// concurrent Start calls cannot both reach the channel 0 setup.
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scanner already running: %w", ErrInvalidParameter)
	}
	s.running = true
	s.mu.Unlock()

	ch, err := s.node.NewChannel()
	if err != nil {
		s.abortStart()
		return err
	}
	// Scan mode always runs on channel 0.
	if ch.Number() != 0 {
		_ = ch.Close()
		s.abortStart()
		return fmt.Errorf("scan mode needs channel 0 free: %w", ErrInvalidParameter)
	}
	ch.OnBroadcast(s.handleBroadcast)

	steps := []func() error{
		func() error { return s.node.assignChannel(0, ChannelTypeReceiveOnly, 0) },
		func() error { return s.node.setChannelID(0, 0, deviceType, 0) },
		func() error { return s.node.EnableExtendedMessages(true) },
		func() error { return s.node.setChannelRFFreq(0, ANTPlusRFFrequency) },
		func() error { return s.node.openRxScanMode() },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			ch.setState(ChannelAssigned, 0, ClientID{})
			_ = ch.Close()
			s.abortStart()
			return err
		}
	}

	ch.setState(ChannelOpen, 0, ClientID{DeviceType: deviceType})
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
	return nil
}

// abortStart releases the running claim after a failed Start.
func (s *Scanner) abortStart() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// handleBroadcast parses the channel ID extension and updates the device
// table. Broadcasts without the extension cannot be attributed and are
// dropped.
func (s *Scanner) handleBroadcast(data []byte) {
	client, ok := parseExtendedClientID(data)
	if !ok {
		return
	}

	now := time.Now()
	payload := make([]byte, 8)
	copy(payload, data[:8])

	s.mu.Lock()
	entry, known := s.seen[client]
	if !known {
		entry = &DeviceEntry{Client: client, FirstSeen: now}
		s.seen[client] = entry
	}
	entry.LastSeen = now
	entry.Messages++
	copy(entry.LastPayload[:], payload)
	entry.Common.apply(payload)
	common := entry.Common
	found, update := s.onFound, s.onUpdate
	s.mu.Unlock()

	// A new transmitter is announced once, then every broadcast, this
	// first one included, feeds the update stream.
	if !known && found != nil {
		found(client, payload)
	}
	if update != nil {
		update(client, common)
	}
}

// Devices returns a snapshot of every transmitter seen so far, ordered by
// device ID.
func (s *Scanner) Devices() []DeviceEntry {
	s.mu.Lock()
	out := make([]DeviceEntry, 0, len(s.seen))
	for _, e := range s.seen {
		out = append(out, *e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Client.DeviceID < out[j].Client.DeviceID
	})
	return out
}

// Stop closes scan mode and disables extended messages, releasing the radio
// for regular channels. The device table survives for inspection.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	if !s.running || s.ch == nil {
		s.mu.Unlock()
		return nil
	}
	ch := s.ch
	s.ch = nil
	s.running = false
	s.mu.Unlock()

	err := ch.Close()
	if exterr := s.node.EnableExtendedMessages(false); exterr != nil && !ignorableCloseError(exterr) && err == nil {
		err = exterr
	}
	return err
}
