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

// Package frame implements the ANT serial message framing: a sync byte,
// payload length, message ID, payload, and an XOR checksum over everything
// preceding it. The decoder is incremental so callers can feed it a stream
// buffer that splits frames at arbitrary chunk boundaries.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// Sync is the fixed ANT frame sync byte (LSB-first framing).
	Sync byte = 0xA4

	// MaxPayload is the largest payload an ANT serial message can carry
	// (extended burst data).
	MaxPayload = 41

	// Overhead is the number of non-payload bytes in a frame:
	// sync + length + message ID + checksum.
	Overhead = 4
)

// Decode errors. ErrNeedMoreData is a flow-control signal, not a failure:
// the caller should read more bytes and try again.
var (
	ErrNeedMoreData     = errors.New("incomplete frame")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrMalformedFrame   = errors.New("malformed frame")
)

// Frame is one complete ANT message as transmitted over the wire.
type Frame struct {
	ID      byte
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("msg 0x%02X % X", f.ID, f.Payload)
}

// Checksum computes the XOR of all bytes in data.
func Checksum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk ^= b
	}
	return chk
}

// Encode serializes a message ID and payload into a wire frame.
func Encode(id byte, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+Overhead)
	buf = append(buf, Sync, byte(len(payload)), id)
	buf = append(buf, payload...)
	return append(buf, Checksum(buf))
}

// Decode scans buf for the next complete frame and returns it along with the
// number of bytes consumed, so the caller can slide its window.
//
// Garbage bytes before the sync byte are consumed and discarded. If buf holds
// the start of a frame but not all of it, Decode returns ErrNeedMoreData with
// consumed covering only the leading garbage. A checksum mismatch consumes a
// single byte past the bad sync so the scan resumes inside the corrupt region
// rather than getting stuck on it.
func Decode(buf []byte) (Frame, int, error) {
	start := bytes.IndexByte(buf, Sync)
	if start < 0 {
		// Nothing resembling a frame; the whole buffer is garbage.
		return Frame{}, len(buf), ErrNeedMoreData
	}

	if len(buf)-start < 2 {
		return Frame{}, start, ErrNeedMoreData
	}

	length := int(buf[start+1])
	if length > MaxPayload {
		// Not a plausible frame header. Skip the sync byte and rescan.
		return Frame{}, start + 1, ErrMalformedFrame
	}

	total := length + Overhead
	if len(buf)-start < total {
		return Frame{}, start, ErrNeedMoreData
	}

	raw := buf[start : start+total]
	if Checksum(raw[:total-1]) != raw[total-1] {
		return Frame{}, start + 1, ErrChecksumMismatch
	}

	payload := make([]byte, length)
	copy(payload, raw[3:3+length])
	return Frame{ID: raw[2], Payload: payload}, start + total, nil
}
