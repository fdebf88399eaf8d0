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

// Package ant is a host driver for ANT wireless USB transceivers.
//
// A Node owns one transceiver session. It runs a background pump that
// reassembles the device's byte stream into frames and a dispatcher that
// correlates command responses and routes broadcasts to channel callbacks.
// Channels pair with individual transmitters; a Scanner discovers every
// transmitter in range using continuous scan mode.
//
// Typical use goes through the connect package:
//
//	node, err := connect.Node()
//	if err != nil {
//		return err
//	}
//	defer node.Stop()
//
//	monitor, err := heartrate.Open(node, ant.ClientID{}, func(d heartrate.Data) {
//		fmt.Println(d.ComputedHeartRate)
//	})
//
// Transports for native USB sticks and serial bridges live in the transport
// subpackages; MockTransport in this package supports tests without
// hardware.
package ant
