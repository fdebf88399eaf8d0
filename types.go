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
	"fmt"
)

// ClientID identifies one transmitting device on the RF network. A zero
// value in any field acts as a wildcard when pairing.
type ClientID struct {
	// DeviceID is the 16-bit device number, unique per transmitter.
	DeviceID uint16 `json:"deviceId"`
	// DeviceType selects the device profile (heart rate monitors are 120).
	DeviceType byte `json:"deviceType"`
	// TransmissionType carries pairing and addressing flags.
	TransmissionType byte `json:"transmissionType"`
}

// Wildcard reports whether the ID matches any device, i.e. all fields zero.
func (c ClientID) Wildcard() bool {
	return c == ClientID{}
}

func (c ClientID) String() string {
	return fmt.Sprintf("%d/%d/%d", c.DeviceID, c.DeviceType, c.TransmissionType)
}

// parseExtendedClientID extracts the transmitter's ID from the channel ID
// extension of a broadcast payload. data is the payload after the channel
// number byte; the extension follows the 8 data bytes as flag, device ID
// (little endian), device type, transmission type.
func parseExtendedClientID(data []byte) (ClientID, bool) {
	if len(data) < 13 || data[8]&extFlagChannelID == 0 {
		return ClientID{}, false
	}
	return ClientID{
		DeviceID:         binary.LittleEndian.Uint16(data[9:11]),
		DeviceType:       data[11],
		TransmissionType: data[12],
	}, true
}
