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

// Package usb implements the transport for native USB ANT sticks using bulk
// endpoint transfers.
package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	ant "github.com/AntPlusProject/go-ant"
)

// Identity is the USB vendor/product pair of a stick model.
type Identity struct {
	VendorID  gousb.ID
	ProductID gousb.ID
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s", id.VendorID, id.ProductID)
}

// Dynastream stick models that speak the native USB framing.
var (
	ANTUSB1 = Identity{VendorID: 0x0FCF, ProductID: 0x1004}
	ANTUSB2 = Identity{VendorID: 0x0FCF, ProductID: 0x1008}
	ANTUSBm = Identity{VendorID: 0x0FCF, ProductID: 0x1009}

	// KnownIdentities lists every supported stick, preferred model first.
	KnownIdentities = []Identity{ANTUSBm, ANTUSB2, ANTUSB1}
)

// Transport drives one ANT stick over USB bulk transfers. Create with New,
// then Open before use. Read and Write run on independent endpoints and may
// be called from different goroutines.
type Transport struct {
	identity Identity

	ctx    *gousb.Context
	dev    *gousb.Device
	done   func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	closed bool
}

// writeTimeout bounds a single bulk OUT transfer. Frames are tiny; a stall
// this long means the device is wedged.
const writeTimeout = 3 * time.Second

// New creates an unopened transport for the given stick model.
func New(identity Identity) *Transport {
	return &Transport{identity: identity}
}

// Open claims the device and its bulk endpoints.
func (t *Transport) Open() error {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(t.identity.VendorID, t.identity.ProductID)
	if err != nil {
		ctx.Close()
		return ant.NewTransportError("open", t.identity.String(), err, ant.ErrorTypePermanent)
	}
	if dev == nil {
		ctx.Close()
		return ant.NewTransportError("open", t.identity.String(), ant.ErrDeviceNotFound, ant.ErrorTypePermanent)
	}

	// Take the interface from a kernel serial driver if one grabbed it.
	// Unsupported on some platforms, which is fine.
	_ = dev.SetAutoDetach(true)

	// A reset clears stale endpoint state from a previous session. Some
	// hubs fail the reset yet leave the device usable, so keep going.
	_ = dev.Reset()

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return ant.NewTransportError("open", t.identity.String(), err, ant.ErrorTypePermanent)
	}

	in, out, err := bulkEndpoints(intf)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return err
	}

	t.ctx = ctx
	t.dev = dev
	t.done = done
	t.in = in
	t.out = out
	t.closed = false
	return nil
}

// bulkEndpoints discovers the first bulk IN and OUT endpoints of the
// claimed interface. Every known stick exposes exactly one of each.
func bulkEndpoints(intf *gousb.Interface) (*gousb.InEndpoint, *gousb.OutEndpoint, error) {
	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint
	for _, desc := range intf.Setting.Endpoints {
		if desc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch desc.Direction {
		case gousb.EndpointDirectionIn:
			if in == nil {
				ep, err := intf.InEndpoint(desc.Number)
				if err != nil {
					return nil, nil, ant.NewTransportError("open", intf.String(), err, ant.ErrorTypePermanent)
				}
				in = ep
			}
		case gousb.EndpointDirectionOut:
			if out == nil {
				ep, err := intf.OutEndpoint(desc.Number)
				if err != nil {
					return nil, nil, ant.NewTransportError("open", intf.String(), err, ant.ErrorTypePermanent)
				}
				out = ep
			}
		}
	}
	if in == nil || out == nil {
		return nil, nil, ant.NewTransportError("open", intf.String(), ant.ErrEndpointNotFound, ant.ErrorTypePermanent)
	}
	return in, out, nil
}

// Read performs one bulk IN transfer, returning whatever the stick had
// queued. A quiet bus surfaces as ant.ErrTransportTimeout.
func (t *Transport) Read(timeout time.Duration) ([]byte, error) {
	if t.in == nil {
		return nil, ant.NewTransportError("read", t.identity.String(), ant.ErrTransportClosed, ant.ErrorTypePermanent)
	}

	size := t.in.Desc.MaxPacketSize
	if size <= 0 {
		size = 64
	}
	buf := make([]byte, size)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil {
		// A transfer cut short by the deadline can still carry bytes.
		if n > 0 && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gousb.TransferCancelled)) {
			return buf[:n], nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gousb.TransferCancelled) {
			return nil, ant.NewTimeoutError("read", t.identity.String())
		}
		if errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.ErrorIO) {
			return nil, ant.NewTransportError("read", t.identity.String(), err, ant.ErrorTypePermanent)
		}
		return nil, ant.NewTransportError("read", t.identity.String(), err, ant.ErrorTypeTransient)
	}
	return buf[:n], nil
}

// Write performs one bulk OUT transfer of the whole buffer.
func (t *Transport) Write(data []byte) error {
	if t.out == nil {
		return ant.NewTransportError("write", t.identity.String(), ant.ErrTransportClosed, ant.ErrorTypePermanent)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	n, err := t.out.WriteContext(ctx, data)
	if err != nil {
		if errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.ErrorIO) {
			return ant.NewTransportError("write", t.identity.String(), err, ant.ErrorTypePermanent)
		}
		return ant.NewTransportError("write", t.identity.String(), err, ant.ErrorTypeTransient)
	}
	if n != len(data) {
		return ant.NewTransportError("write", t.identity.String(),
			fmt.Errorf("short write: %d of %d bytes: %w", n, len(data), ant.ErrTransportWrite),
			ant.ErrorTypeTransient)
	}
	return nil
}

// Close releases the interface, device, and USB context. Idempotent.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	t.in = nil
	t.out = nil
	if t.done != nil {
		t.done()
		t.done = nil
	}
	var errs []error
	if t.dev != nil {
		if err := t.dev.Close(); err != nil {
			errs = append(errs, err)
		}
		t.dev = nil
	}
	if t.ctx != nil {
		if err := t.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		t.ctx = nil
	}
	return errors.Join(errs...)
}

// Type implements ant.Transport.
func (*Transport) Type() ant.TransportType {
	return ant.TransportUSB
}
