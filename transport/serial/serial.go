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

// Package serial implements the transport for ANT sticks and modules that
// present a serial port, such as USB-serial bridged ANTUSB1 sticks.
package serial

import (
	"errors"
	"time"

	goserial "go.bug.st/serial"

	ant "github.com/AntPlusProject/go-ant"
)

// DefaultBaudRate is the rate every serial-bridged ANT stick ships with.
const DefaultBaudRate = 115200

// Transport drives an ANT device over a serial port.
type Transport struct {
	portName string
	baudRate int
	port     goserial.Port
	closed   bool
}

// New creates an unopened transport for the named port ("/dev/ttyUSB0",
// "COM3"). baudRate 0 selects DefaultBaudRate.
func New(portName string, baudRate int) *Transport {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &Transport{portName: portName, baudRate: baudRate}
}

// Open opens the port in 8N1 framing.
func (t *Transport) Open() error {
	mode := &goserial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}

	port, err := goserial.Open(t.portName, mode)
	if err != nil {
		return ant.NewTransportError("open", t.portName, err, ant.ErrorTypePermanent)
	}

	// Drop whatever a previous session left in the driver buffers.
	_ = port.ResetInputBuffer()
	_ = port.ResetOutputBuffer()

	t.port = port
	t.closed = false
	return nil
}

// Read returns the bytes available within the timeout. The serial driver
// signals a quiet line with a zero-length read.
func (t *Transport) Read(timeout time.Duration) ([]byte, error) {
	if t.port == nil {
		return nil, ant.NewTransportError("read", t.portName, ant.ErrTransportClosed, ant.ErrorTypePermanent)
	}

	if err := t.port.SetReadTimeout(timeout); err != nil {
		return nil, ant.NewTransportError("read", t.portName, err, ant.ErrorTypeTransient)
	}

	buf := make([]byte, 256)
	n, err := t.port.Read(buf)
	if err != nil {
		var pe *goserial.PortError
		if errors.As(err, &pe) && pe.Code() == goserial.PortClosed {
			return nil, ant.NewTransportError("read", t.portName, ant.ErrTransportClosed, ant.ErrorTypePermanent)
		}
		return nil, ant.NewTransportError("read", t.portName, err, ant.ErrorTypeTransient)
	}
	if n == 0 {
		return nil, ant.NewTimeoutError("read", t.portName)
	}
	return buf[:n], nil
}

// Write sends the whole buffer.
func (t *Transport) Write(data []byte) error {
	if t.port == nil {
		return ant.NewTransportError("write", t.portName, ant.ErrTransportClosed, ant.ErrorTypePermanent)
	}

	written := 0
	for written < len(data) {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return ant.NewTransportError("write", t.portName, err, ant.ErrorTypeTransient)
		}
		written += n
	}
	return nil
}

// Close closes the port. Idempotent.
func (t *Transport) Close() error {
	if t.closed || t.port == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return ant.NewTransportError("close", t.portName, err, ant.ErrorTypeTransient)
	}
	return nil
}

// Type implements ant.Transport.
func (*Transport) Type() ant.TransportType {
	return ant.TransportSerial
}
