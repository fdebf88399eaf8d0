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

// Package connect ties detection, transports, and the node together into a
// one-call session setup with retry.
package connect

import (
	"fmt"
	"time"

	"github.com/google/gousb"

	ant "github.com/AntPlusProject/go-ant"
	"github.com/AntPlusProject/go-ant/detection"
	"github.com/AntPlusProject/go-ant/transport/serial"
	"github.com/AntPlusProject/go-ant/transport/usb"
)

// Options configures Node.
type Options struct {
	usbIdentity *usb.Identity
	serialPort  string
	baudRate    int

	networkSlot byte
	networkKey  [8]byte
	skipNetwork bool
	skipReset   bool

	retries int
	backoff time.Duration

	nodeOptions []ant.Option
}

// Option adjusts connection behavior.
type Option func(*Options)

// WithUSBIdentity pins the session to one USB stick model instead of
// auto-detecting.
func WithUSBIdentity(id usb.Identity) Option {
	return func(o *Options) { o.usbIdentity = &id }
}

// WithSerialPort uses a serial transport on the named port instead of USB.
// baudRate 0 selects the default.
func WithSerialPort(port string, baudRate int) Option {
	return func(o *Options) {
		o.serialPort = port
		o.baudRate = baudRate
	}
}

// WithNetworkKey replaces the default ANT+ key on the given network slot.
func WithNetworkKey(slot byte, key [8]byte) Option {
	return func(o *Options) {
		o.networkSlot = slot
		o.networkKey = key
	}
}

// WithoutNetworkKey skips network key programming entirely, for public
// network use.
func WithoutNetworkKey() Option {
	return func(o *Options) { o.skipNetwork = true }
}

// WithoutReset skips the initial system reset, preserving device state from
// a previous session.
func WithoutReset() Option {
	return func(o *Options) { o.skipReset = true }
}

// WithRetries sets how many times a failed setup is retried with backoff.
func WithRetries(n int) Option {
	return func(o *Options) { o.retries = n }
}

// WithNodeOptions forwards options to the node constructor.
func WithNodeOptions(opts ...ant.Option) Option {
	return func(o *Options) { o.nodeOptions = append(o.nodeOptions, opts...) }
}

func defaultOptions() *Options {
	return &Options{
		networkKey: ant.ANTPlusNetworkKey,
		retries:    2,
		backoff:    250 * time.Millisecond,
	}
}

// Node locates a transceiver, opens it, resets it, and programs the network
// key. The returned node is ready for channels or scanning. On any failure
// the partial session is torn down before the next attempt.
func Node(opts ...Option) (*ant.Node, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var lastErr error
	backoff := o.backoff
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		node, err := setup(o)
		if err == nil {
			return node, nil
		}
		lastErr = err
		if !ant.IsRetryable(err) && !ant.IsFatal(err) {
			break
		}
	}
	return nil, fmt.Errorf("connect failed after %d attempts: %w", o.retries+1, lastErr)
}

func setup(o *Options) (*ant.Node, error) {
	transport, err := newTransport(o)
	if err != nil {
		return nil, err
	}

	node, err := ant.NewNode(transport, o.nodeOptions...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	if !o.skipReset {
		if err := node.ResetSystem(); err != nil {
			_ = node.Stop()
			return nil, err
		}
	}
	if !o.skipNetwork {
		if err := node.SetNetworkKey(o.networkSlot, o.networkKey); err != nil {
			_ = node.Stop()
			return nil, err
		}
	}
	return node, nil
}

// newTransport picks the transport: explicit serial port, explicit USB
// identity, or the first known stick found on the bus.
func newTransport(o *Options) (ant.Transport, error) {
	if o.serialPort != "" {
		return serial.New(o.serialPort, o.baudRate), nil
	}
	if o.usbIdentity != nil {
		return usb.New(*o.usbIdentity), nil
	}

	devices, err := detection.Detect()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no transceiver on the bus: %w", ant.ErrDeviceNotFound)
	}
	first := devices[0]
	return usb.New(usb.Identity{
		VendorID:  gousb.ID(first.VendorID),
		ProductID: gousb.ID(first.ProductID),
	}), nil
}
