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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		vendorID  uint16
		productID uint16
		wantName  string
		wantOK    bool
	}{
		{"antusb-m", 0x0FCF, 0x1009, "ANTUSB-m", true},
		{"antusb2", 0x0FCF, 0x1008, "ANTUSB2", true},
		{"antusb1", 0x0FCF, 0x1004, "ANTUSB1", true},
		{"wrong product", 0x0FCF, 0xFFFF, "", false},
		{"wrong vendor", 0x1D6B, 0x1009, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, ok := Lookup(tt.vendorID, tt.productID)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()

	d := DeviceInfo{
		Name:      "ANTUSB-m",
		VendorID:  0x0FCF,
		ProductID: 0x1009,
		Bus:       1,
		Address:   4,
	}
	assert.Equal(t, "ANTUSB-m (0fcf:1009) bus 1 addr 4", d.String())
}
