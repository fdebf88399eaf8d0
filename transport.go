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
	"bytes"
	"time"

	"github.com/AntPlusProject/go-ant/internal/frame"
	"github.com/AntPlusProject/go-ant/internal/syncutil"
)

// Transport defines the raw byte pipe to an ANT transceiver. Implemented by
// USB bulk endpoints and serial ports; reads and writes are independent
// directions and may be used concurrently by different goroutines.
type Transport interface {
	// Open claims the device and prepares both directions for I/O.
	Open() error

	// Read returns whatever bytes are available within the timeout, up to
	// one transfer's worth. A timeout surfaces as ErrTransportTimeout.
	Read(timeout time.Duration) ([]byte, error)

	// Write performs a blocking write of the full buffer.
	Write(data []byte) error

	// Close releases the device. Idempotent, and callable even if Open
	// partially failed.
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUSB represents a native USB bulk-endpoint transport.
	TransportUSB TransportType = "usb"
	// TransportSerial represents a serial port transport (USB-serial
	// bridged sticks).
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockResponse is one frame a MockTransport emits in reply to a command.
type MockResponse struct {
	ID      byte
	Payload []byte
}

// SentFrame records one frame written to a MockTransport.
type SentFrame struct {
	ID      byte
	Payload []byte
}

// MockTransport provides a scriptable in-memory implementation of Transport
// for testing. Frames written to it are decoded and answered from a script;
// unscripted channel and configuration commands are acknowledged with a
// successful channel response, mimicking a healthy stick. Read delivery can
// be chunked to exercise stream reassembly.
type MockTransport struct {
	mu        syncutil.Mutex
	readBuf   bytes.Buffer
	signal    chan struct{}
	scripts   map[byte][][]MockResponse
	writes    []SentFrame
	errOnSend map[byte]error
	chunkSize int
	opened    bool
	closed    bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		signal:    make(chan struct{}, 1),
		scripts:   make(map[byte][][]MockResponse),
		errOnSend: make(map[byte]error),
	}
}

// Open implements Transport
func (m *MockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewTransportError("open", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	m.opened = true
	return nil
}

// Read implements Transport. It blocks until bytes are available or the
// timeout elapses.
func (m *MockTransport) Read(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, NewTransportError("read", "mock", ErrTransportClosed, ErrorTypePermanent)
		}
		if m.readBuf.Len() > 0 {
			n := m.readBuf.Len()
			if m.chunkSize > 0 && n > m.chunkSize {
				n = m.chunkSize
			}
			out := make([]byte, n)
			_, _ = m.readBuf.Read(out)
			m.mu.Unlock()
			return out, nil
		}
		m.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, NewTimeoutError("read", "mock")
		}
		timer := time.NewTimer(remaining)
		select {
		case <-m.signal:
			timer.Stop()
		case <-timer.C:
			return nil, NewTimeoutError("read", "mock")
		}
	}
}

// Write implements Transport. Complete frames in data are decoded, recorded,
// and answered from the script.
func (m *MockTransport) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewTransportError("write", "mock", ErrTransportClosed, ErrorTypePermanent)
	}

	rest := data
	for len(rest) > 0 {
		fr, n, err := frame.Decode(rest)
		if err != nil {
			break
		}
		rest = rest[n:]
		m.writes = append(m.writes, SentFrame{ID: fr.ID, Payload: fr.Payload})

		if injected, ok := m.errOnSend[fr.ID]; ok {
			return injected
		}
		m.respondLocked(fr)
	}
	return nil
}

// respondLocked queues the scripted (or default) reply for a written frame.
func (m *MockTransport) respondLocked(fr frame.Frame) {
	if queue, ok := m.scripts[fr.ID]; ok && len(queue) > 0 {
		responses := queue[0]
		m.scripts[fr.ID] = queue[1:]
		for _, r := range responses {
			m.readBuf.Write(frame.Encode(r.ID, r.Payload))
		}
		m.notify()
		return
	}

	// Default: acknowledge channel and configuration commands the way a
	// real stick does. Data and request messages stay silent unless
	// scripted.
	switch fr.ID {
	case MsgAssignChannel, MsgUnassignChannel, MsgSetChannelID,
		MsgSetChannelPeriod, MsgSetChannelRFFreq, MsgSetChannelSearchTimeout,
		MsgSetNetworkKey, MsgSetTransmitPower, MsgOpenChannel, MsgCloseChannel,
		MsgOpenRxScanMode, MsgEnableExtRxMessages, MsgLibConfig:
		var ch byte
		if len(fr.Payload) > 0 {
			ch = fr.Payload[0]
		}
		m.readBuf.Write(frame.Encode(MsgChannelResponse, []byte{ch, fr.ID, ResponseNoError}))
		m.notify()
	case MsgResetSystem:
		m.readBuf.Write(frame.Encode(MsgStartup, []byte{0x20}))
		m.notify()
	}
}

func (m *MockTransport) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notify()
	return nil
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// Script queues a reply for the next write of the given message ID,
// overriding the default acknowledgement. Multiple calls queue in FIFO
// order; an empty response list makes the device stay silent once.
func (m *MockTransport) Script(forID byte, responses ...MockResponse) {
	m.mu.Lock()
	m.scripts[forID] = append(m.scripts[forID], responses)
	m.mu.Unlock()
}

// SetSendError injects a write error for frames with the given message ID
func (m *MockTransport) SetSendError(forID byte, err error) {
	m.mu.Lock()
	m.errOnSend[forID] = err
	m.mu.Unlock()
}

// Inject delivers an unsolicited frame, as if the device transmitted it.
func (m *MockTransport) Inject(id byte, payload []byte) {
	m.mu.Lock()
	m.readBuf.Write(frame.Encode(id, payload))
	m.mu.Unlock()
	m.notify()
}

// InjectRaw delivers raw bytes without framing, for corruption tests.
func (m *MockTransport) InjectRaw(data []byte) {
	m.mu.Lock()
	m.readBuf.Write(data)
	m.mu.Unlock()
	m.notify()
}

// SetChunkSize limits how many bytes a single Read returns, exercising
// frame reassembly across chunk boundaries. Zero means unlimited.
func (m *MockTransport) SetChunkSize(n int) {
	m.mu.Lock()
	m.chunkSize = n
	m.mu.Unlock()
}

// Writes returns the decoded frames written so far, in order.
func (m *MockTransport) Writes() []SentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentFrame, len(m.writes))
	copy(out, m.writes)
	return out
}

// SentIDs returns the message IDs written so far, in order.
func (m *MockTransport) SentIDs() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]byte, len(m.writes))
	for i, w := range m.writes {
		ids[i] = w.ID
	}
	return ids
}
