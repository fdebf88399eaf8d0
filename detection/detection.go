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

// Package detection discovers attached ANT transceivers by enumerating the
// USB bus against the table of known stick models.
package detection

import (
	"fmt"

	"github.com/google/gousb"
)

// DeviceInfo describes one attached transceiver.
type DeviceInfo struct {
	// Name is the marketing name of the stick model.
	Name string
	// VendorID and ProductID identify the model on the bus.
	VendorID  uint16
	ProductID uint16
	// Bus and Address locate this particular unit.
	Bus     int
	Address int
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%04x:%04x) bus %d addr %d",
		d.Name, d.VendorID, d.ProductID, d.Bus, d.Address)
}

// knownSticks maps vendor/product pairs to stick models. All Dynastream.
var knownSticks = map[[2]uint16]string{
	{0x0FCF, 0x1004}: "ANTUSB1",
	{0x0FCF, 0x1008}: "ANTUSB2",
	{0x0FCF, 0x1009}: "ANTUSB-m",
}

// Lookup returns the model name for a vendor/product pair.
func Lookup(vendorID, productID uint16) (string, bool) {
	name, ok := knownSticks[[2]uint16{vendorID, productID}]
	return name, ok
}

// Detect enumerates the USB bus and returns every known transceiver found,
// without opening any of them.
func Detect() ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	return detect(ctx)
}

func detect(ctx *gousb.Context) ([]DeviceInfo, error) {
	var found []DeviceInfo

	// The predicate never admits a device, so OpenDevices opens nothing;
	// it is used purely as the enumeration walk.
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		name, ok := Lookup(uint16(desc.Vendor), uint16(desc.Product))
		if ok {
			found = append(found, DeviceInfo{
				Name:      name,
				VendorID:  uint16(desc.Vendor),
				ProductID: uint16(desc.Product),
				Bus:       desc.Bus,
				Address:   desc.Address,
			})
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("usb enumeration failed: %w", err)
	}
	return found, nil
}
