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
	"time"
)

// ANT+ common data page numbers, rotated into every profile's broadcast
// stream at a low rate.
const (
	pageManufacturerInfo byte = 0x50
	pageProductInfo      byte = 0x51
	pageBatteryStatus    byte = 0x52
)

// BatteryStatus is the coarse battery condition from the battery status
// page.
type BatteryStatus byte

const (
	BatteryStatusUnknown  BatteryStatus = 0
	BatteryStatusNew      BatteryStatus = 1
	BatteryStatusGood     BatteryStatus = 2
	BatteryStatusOK       BatteryStatus = 3
	BatteryStatusLow      BatteryStatus = 4
	BatteryStatusCritical BatteryStatus = 5
	BatteryStatusInvalid  BatteryStatus = 7
)

func (b BatteryStatus) String() string {
	switch b {
	case BatteryStatusUnknown:
		return "unknown"
	case BatteryStatusNew:
		return "new"
	case BatteryStatusGood:
		return "good"
	case BatteryStatusOK:
		return "ok"
	case BatteryStatusLow:
		return "low"
	case BatteryStatusCritical:
		return "critical"
	case BatteryStatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", byte(b))
	}
}

// CommonData accumulates the common pages a transmitter rotates into its
// broadcast stream. Fields stay zero until the matching page has been seen;
// most devices take a few seconds to cycle through all three.
type CommonData struct {
	// Manufacturer info page (0x50).
	HardwareRevision byte
	ManufacturerID   uint16
	ModelNumber      uint16

	// Product info page (0x51). SoftwareRevision folds the supplemental
	// revision byte in when the device reports one.
	SoftwareRevision float64
	SerialNumber     uint32

	// Battery status page (0x52).
	BatteryVoltage          float64
	BatteryStatus           BatteryStatus
	CumulativeOperatingTime time.Duration
}

// apply folds one 8-byte broadcast payload into the accumulator and reports
// whether it carried a common page.
func (c *CommonData) apply(data []byte) bool {
	if len(data) < 8 {
		return false
	}

	switch data[0] {
	case pageManufacturerInfo:
		c.HardwareRevision = data[3]
		c.ManufacturerID = binary.LittleEndian.Uint16(data[4:6])
		c.ModelNumber = binary.LittleEndian.Uint16(data[6:8])
	case pageProductInfo:
		if data[2] != 0xFF {
			c.SoftwareRevision = (float64(data[3])*100 + float64(data[2])) / 1000
		} else {
			c.SoftwareRevision = float64(data[3]) / 10
		}
		c.SerialNumber = binary.LittleEndian.Uint32(data[4:8])
	case pageBatteryStatus:
		// 24-bit operating time; bit 7 of the descriptive byte selects
		// 2 s or 16 s ticks.
		ticks := uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16
		resolution := 16 * time.Second
		if data[7]&0x80 != 0 {
			resolution = 2 * time.Second
		}
		c.CumulativeOperatingTime = time.Duration(ticks) * resolution
		c.BatteryVoltage = float64(data[7]&0x0F) + float64(data[6])/256
		c.BatteryStatus = BatteryStatus((data[7] >> 4) & 0x07)
	default:
		return false
	}
	return true
}
