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
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("read", "usb")
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.Contains(t, err.Error(), "read")
	assert.Contains(t, err.Error(), "usb")
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", NewTimeoutError("read", "usb"), true},
		{"transient write", NewTransportWriteError("write", "usb"), true},
		{"permanent", NewTransportError("open", "usb", ErrDeviceNotFound, ErrorTypePermanent), false},
		{"response timeout", fmt.Errorf("op: %w", ErrResponseTimeout), true},
		{"checksum", ErrChecksumMismatch, true},
		{"wrong state rejection", NewDeviceError("OpenChannel", 0, CodeChannelInWrongState), true},
		{"invalid message rejection", NewDeviceError("OpenChannel", 0, CodeInvalidMessage), false},
		{"cancelled", ErrCancelled, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", NewTimeoutError("read", "usb"), false},
		{"closed", fmt.Errorf("read: %w", ErrTransportClosed), true},
		{"device gone", NewTransportError("read", "usb", ErrDeviceNotFound, ErrorTypePermanent), true},
		{"eof", io.EOF, true},
		{"plain", errors.New("whatever"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestDeviceErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewDeviceError("OpenChannel", 3, CodeChannelInWrongState)
	assert.Contains(t, err.Error(), "OpenChannel")
	assert.Contains(t, err.Error(), "channel 3")
	assert.Contains(t, err.Error(), "0x15")
	assert.Contains(t, err.Error(), "wrong state")
}

func TestDeviceErrorIsEventCode(t *testing.T) {
	t.Parallel()

	assert.True(t, NewDeviceError("x", 0, EventChannelClosed).IsEventCode())
	assert.False(t, NewDeviceError("x", 0, CodeChannelInWrongState).IsEventCode())
	assert.False(t, NewDeviceError("x", 0, ResponseNoError).IsEventCode())
}
