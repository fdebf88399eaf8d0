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

	"github.com/AntPlusProject/go-ant/internal/frame"
)

// Error categories for error handling and retry logic
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrEndpointNotFound = errors.New("bulk endpoint not found")
	ErrDeviceNotFound   = errors.New("device not found")

	// Frame decode errors, re-exported from the codec so callers never have
	// to import the internal package.
	ErrNeedMoreData     = frame.ErrNeedMoreData
	ErrChecksumMismatch = frame.ErrChecksumMismatch
	ErrMalformedFrame   = frame.ErrMalformedFrame

	// Protocol errors from synchronous node operations
	ErrResponseTimeout    = errors.New("no response from device")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrCancelled          = errors.New("operation cancelled")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNoFreeChannel      = errors.New("no free channel")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// DeviceError is returned when the device rejects a command with a non-zero
// channel response code.
type DeviceError struct {
	Command string
	Channel byte
	Code    byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s rejected on channel %d: code 0x%02X (%s)",
		e.Command, e.Channel, e.Code, codeMeaning(e.Code))
}

// IsEventCode returns true if the code is an RF event rather than a command
// response. Event codes share the response code namespace below 0x15.
func (e *DeviceError) IsEventCode() bool {
	return e.Code >= EventRxSearchTimeout && e.Code <= EventTransferTxStart
}

// NewDeviceError creates a device rejection error for a command
func NewDeviceError(command string, channel, code byte) *DeviceError {
	return &DeviceError{Command: command, Channel: channel, Code: code}
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var de *DeviceError
	if errors.As(err, &de) {
		// Wrong-state rejections resolve once the channel settles; the
		// rest indicate a host-side programming error.
		return de.Code == CodeChannelInWrongState
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrResponseTimeout),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device/connection is gone
// and the session should be torn down. This is distinct from IsRetryable
// which indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrEndpointNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}
