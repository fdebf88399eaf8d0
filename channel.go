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

	"github.com/AntPlusProject/go-ant/internal/syncutil"
)

// ChannelState tracks where a channel is in its lifecycle.
type ChannelState int

const (
	// ChannelClosed is the initial and final state.
	ChannelClosed ChannelState = iota
	// ChannelAssigned means the device accepted the assignment but the
	// channel is not yet open.
	ChannelAssigned
	// ChannelOpen means broadcasts are flowing.
	ChannelOpen
)

func (s ChannelState) String() string {
	switch s {
	case ChannelClosed:
		return "closed"
	case ChannelAssigned:
		return "assigned"
	case ChannelOpen:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Channel is one logical RF channel of the transceiver. Obtain one from
// Node.NewChannel, set callbacks, then Open it against a client ID.
//
// Callbacks run on the node's dispatch goroutine; blocking in one stalls all
// traffic for the whole node.
type Channel struct {
	node   *Node
	number byte

	mu          syncutil.Mutex
	state       ChannelState
	network     byte
	client      ClientID
	onBroadcast func(data []byte)
	onEvent     func(code byte)
}

// Number returns the channel slot on the device.
func (c *Channel) Number() byte {
	return c.number
}

// State returns the current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnBroadcast sets the callback invoked for every broadcast payload received
// on this channel. The data slice includes any extended trailer and is only
// valid for the duration of the call. Must be set before Open.
func (c *Channel) OnBroadcast(fn func(data []byte)) {
	c.mu.Lock()
	c.onBroadcast = fn
	c.mu.Unlock()
}

// OnEvent sets the callback invoked for RF events on this channel, such as
// EventRxSearchTimeout or EventChannelClosed. Must be set before Open.
func (c *Channel) OnEvent(fn func(code byte)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *Channel) deliverBroadcast(data []byte) {
	c.mu.Lock()
	fn := c.onBroadcast
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *Channel) deliverEvent(code byte) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

// Open runs the full configuration sequence for a bidirectional slave
// channel on network 0 and opens it: assign, set channel ID, set period, set
// RF frequency, open. The first rejected step aborts the sequence with the
// device's response code.
//
// A wildcard client pairs with the first matching transmitter found.
func (c *Channel) Open(client ClientID, period uint16, rfFreq byte) error {
	return c.open(ChannelTypeReceive, 0, client, period, rfFreq)
}

// OpenReceiveOnly is Open with a receive-only channel assignment, used when
// the host never acknowledges or transmits.
func (c *Channel) OpenReceiveOnly(client ClientID, period uint16, rfFreq byte) error {
	return c.open(ChannelTypeReceiveOnly, 0, client, period, rfFreq)
}

func (c *Channel) open(channelType, network byte, client ClientID, period uint16, rfFreq byte) error {
	c.mu.Lock()
	if c.state != ChannelClosed {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("channel %d is %s: %w", c.number, state, ErrInvalidParameter)
	}
	c.mu.Unlock()

	if err := c.node.assignChannel(c.number, channelType, network); err != nil {
		return err
	}
	c.setState(ChannelAssigned, network, client)

	// Configuration order follows the device's state machine; the ID must
	// land before the channel opens or the open is rejected.
	steps := []func() error{
		func() error {
			return c.node.setChannelID(c.number, client.DeviceID, client.DeviceType, client.TransmissionType)
		},
		func() error { return c.node.setChannelPeriod(c.number, period) },
		func() error { return c.node.setChannelRFFreq(c.number, rfFreq) },
		func() error { return c.node.openChannel(c.number) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			// Leave the channel assigned so Close can unwind it.
			return err
		}
	}

	c.setState(ChannelOpen, network, client)
	return nil
}

func (c *Channel) setState(s ChannelState, network byte, client ClientID) {
	c.mu.Lock()
	c.state = s
	c.network = network
	c.client = client
	c.mu.Unlock()
}

// SetSearchTimeout adjusts how long the channel searches for its client
// before giving up, in 2.5 second units. 0xFF searches forever.
func (c *Channel) SetSearchTimeout(timeout byte) error {
	return c.node.setChannelSearchTimeout(c.number, timeout)
}

// SendBroadcast queues one 8-byte broadcast payload for transmission on the
// next channel period. Only meaningful on a master channel.
func (c *Channel) SendBroadcast(data [8]byte) error {
	payload := append([]byte{c.number}, data[:]...)
	return c.node.Send(MsgBroadcastData, payload)
}

// Close shuts the channel down and returns its slot to the node. Best
// effort: the channel is considered closed no matter which teardown steps
// the device still acknowledges, so Close is safe during and after node
// shutdown.
func (c *Channel) Close() error {
	c.mu.Lock()
	state := c.state
	c.state = ChannelClosed
	c.mu.Unlock()

	defer c.node.releaseChannel(c.number)

	if state == ChannelClosed {
		return nil
	}

	var errs []error
	if state == ChannelOpen {
		if err := c.node.closeChannel(c.number); err != nil && !ignorableCloseError(err) {
			errs = append(errs, err)
		}
	}
	if err := c.node.unassignChannel(c.number); err != nil && !ignorableCloseError(err) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ignorableCloseError filters the errors a teardown races into once the
// engine or device is already gone.
func ignorableCloseError(err error) bool {
	if errors.Is(err, ErrCancelled) || errors.Is(err, ErrTransportClosed) {
		return true
	}
	var de *DeviceError
	if errors.As(err, &de) {
		// Already closed or never opened on the device side.
		return de.Code == CodeChannelInWrongState || de.Code == CodeChannelNotOpened
	}
	return IsFatal(err)
}
