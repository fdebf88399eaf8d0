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
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds node tuning parameters. Zero values are replaced by
// DefaultConfig; callers normally adjust it through Options.
type Config struct {
	// Logger receives structured diagnostics from the pump and dispatch
	// workers. Disabled by default.
	Logger zerolog.Logger

	// ResponseTimeout bounds every synchronous command's wait for its
	// response frame.
	ResponseTimeout time.Duration

	// ReadTimeout is the poll interval of the transport read loop. It also
	// bounds how quickly the pump notices a stop request.
	ReadTimeout time.Duration

	// QueueSize is the capacity of the decoded frame queue between the pump
	// and the dispatcher.
	QueueSize int
}

// DefaultConfig returns the tuning used when no options are given.
func DefaultConfig() *Config {
	return &Config{
		Logger:          zerolog.Nop(),
		ResponseTimeout: 1500 * time.Millisecond,
		ReadTimeout:     50 * time.Millisecond,
		QueueSize:       64,
	}
}

// Option configures a Node at construction time.
type Option func(*Node) error

// WithLogger sets the structured logger for session diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(n *Node) error {
		n.config.Logger = log
		return nil
	}
}

// WithResponseTimeout sets how long synchronous commands wait for the
// device's response.
func WithResponseTimeout(d time.Duration) Option {
	return func(n *Node) error {
		if d <= 0 {
			return fmt.Errorf("response timeout %v: %w", d, ErrInvalidParameter)
		}
		n.config.ResponseTimeout = d
		return nil
	}
}

// WithReadTimeout sets the transport read poll interval.
func WithReadTimeout(d time.Duration) Option {
	return func(n *Node) error {
		if d <= 0 {
			return fmt.Errorf("read timeout %v: %w", d, ErrInvalidParameter)
		}
		n.config.ReadTimeout = d
		return nil
	}
}

// WithQueueSize sets the decoded frame queue capacity.
func WithQueueSize(size int) Option {
	return func(n *Node) error {
		if size < 1 {
			return fmt.Errorf("queue size %d: %w", size, ErrInvalidParameter)
		}
		n.config.QueueSize = size
		return nil
	}
}
