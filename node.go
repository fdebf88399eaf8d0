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
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AntPlusProject/go-ant/internal/frame"
	"github.com/AntPlusProject/go-ant/internal/syncutil"
)

// pendingCommand correlates one in-flight synchronous command with the
// response frame that answers it. Commands are strictly serialized, so at
// most one exists per node at a time.
type pendingCommand struct {
	match func(frame.Frame) bool
	reply chan frame.Frame
}

// Node implements the ANT node protocol on top of the device pump: a
// synchronous command/response API, channel lifecycle management, and an
// asynchronous event stream dispatched to channel callbacks.
//
// Two goroutines run per node: the pump's read loop and the dispatch loop.
// All callbacks fire on the dispatch goroutine and must not block
// unboundedly. Stop is safe to call from inside a callback.
type Node struct {
	transport Transport
	pump      *pump
	config    *Config

	cmdMu     syncutil.Mutex
	pendingMu syncutil.Mutex
	pending   *pendingCommand

	chanMu   syncutil.RWMutex
	channels [MaxChannels]*Channel

	stop         chan struct{}
	dispatchDone chan struct{}
	stopOnce     sync.Once
	stopped      atomic.Bool
	stopErr      error
}

// NewNode opens the transport and starts the pump and dispatch workers. The
// caller owns the transport on failure and should close it.
func NewNode(transport Transport, opts ...Option) (*Node, error) {
	n := &Node{
		transport:    transport,
		config:       DefaultConfig(),
		stop:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	if err := transport.Open(); err != nil {
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}

	n.pump = newPump(transport, n.config.Logger, n.config.ReadTimeout, n.config.QueueSize)
	go n.dispatchLoop()
	return n, nil
}

// Transport returns the underlying transport
func (n *Node) Transport() Transport {
	return n.transport
}

// dispatchLoop routes every frame the pump produces: first against the
// pending command slot, then to the owning channel's callback.
func (n *Node) dispatchLoop() {
	defer close(n.dispatchDone)
	for {
		select {
		case <-n.stop:
			return
		case fr := <-n.pump.frames:
			n.dispatch(fr)
		}
	}
}

func (n *Node) dispatch(fr frame.Frame) {
	// Response correlation comes first so a blocked caller is released
	// before any callback work happens.
	n.pendingMu.Lock()
	if p := n.pending; p != nil && p.match(fr) {
		n.pending = nil
		n.pendingMu.Unlock()
		p.reply <- fr
		return
	}
	n.pendingMu.Unlock()

	switch fr.ID {
	case MsgBroadcastData, MsgAcknowledgedData, MsgBurstData:
		if len(fr.Payload) < 1 {
			return
		}
		if ch := n.channel(fr.Payload[0]); ch != nil {
			ch.deliverBroadcast(fr.Payload[1:])
		} else {
			n.config.Logger.Debug().Uint8("channel", fr.Payload[0]).Msg("broadcast for unallocated channel")
		}
	case MsgChannelResponse:
		if len(fr.Payload) < 3 {
			return
		}
		if ch := n.channel(fr.Payload[0]); ch != nil {
			ch.deliverEvent(fr.Payload[2])
		} else {
			n.config.Logger.Debug().
				Uint8("channel", fr.Payload[0]).
				Uint8("msg", fr.Payload[1]).
				Uint8("code", fr.Payload[2]).
				Msg("unmatched channel response")
		}
	case MsgStartup:
		n.config.Logger.Debug().Hex("reason", fr.Payload).Msg("startup notification")
	case MsgSerialError:
		n.config.Logger.Warn().Hex("detail", fr.Payload).Msg("device reported serial error")
	default:
		n.config.Logger.Debug().Uint8("msg", fr.ID).Msg("unhandled frame")
	}
}

func (n *Node) channel(num byte) *Channel {
	if int(num) >= MaxChannels {
		return nil
	}
	n.chanMu.RLock()
	defer n.chanMu.RUnlock()
	return n.channels[num]
}

// Send encodes and writes a single frame without waiting for any response.
func (n *Node) Send(id byte, payload []byte) error {
	return n.pump.send(id, payload)
}

// command sends one frame and blocks until a frame matching match arrives,
// the response timeout elapses, or the node is stopped. Synchronous commands
// are serialized; concurrent callers queue behind the command mutex so a
// response can never be attributed to the wrong request.
func (n *Node) command(name string, id byte, payload []byte, match func(frame.Frame) bool) (frame.Frame, error) {
	n.cmdMu.Lock()
	defer n.cmdMu.Unlock()

	if n.stopped.Load() {
		return frame.Frame{}, fmt.Errorf("%s: %w", name, ErrCancelled)
	}

	pc := &pendingCommand{match: match, reply: make(chan frame.Frame, 1)}
	n.pendingMu.Lock()
	n.pending = pc
	n.pendingMu.Unlock()

	if err := n.pump.send(id, payload); err != nil {
		n.clearPending(pc)
		return frame.Frame{}, fmt.Errorf("%s: %w", name, err)
	}

	timer := time.NewTimer(n.config.ResponseTimeout)
	defer timer.Stop()
	select {
	case fr := <-pc.reply:
		return fr, nil
	case <-timer.C:
		n.clearPending(pc)
		return frame.Frame{}, fmt.Errorf("%s: %w", name, ErrResponseTimeout)
	case <-n.stop:
		n.clearPending(pc)
		return frame.Frame{}, fmt.Errorf("%s: %w", name, ErrCancelled)
	}
}

// clearPending removes pc from the pending slot unless dispatch already
// consumed it.
func (n *Node) clearPending(pc *pendingCommand) {
	n.pendingMu.Lock()
	if n.pending == pc {
		n.pending = nil
	}
	n.pendingMu.Unlock()
}

// channelResponseMatcher matches the channel response acknowledging the
// command with the given message ID on the given channel (or network, for
// network configuration commands).
func channelResponseMatcher(channel, msgID byte) func(frame.Frame) bool {
	return func(f frame.Frame) bool {
		return f.ID == MsgChannelResponse &&
			len(f.Payload) >= 3 &&
			f.Payload[0] == channel &&
			f.Payload[1] == msgID
	}
}

// channelCommand issues one channel-scoped command frame and checks the
// correlated response code.
func (n *Node) channelCommand(name string, id, channel byte, rest ...byte) error {
	payload := append([]byte{channel}, rest...)
	fr, err := n.command(name, id, payload, channelResponseMatcher(channel, id))
	if err != nil {
		return err
	}
	if code := fr.Payload[2]; code != ResponseNoError {
		return NewDeviceError(name, channel, code)
	}
	return nil
}

// RequestMessage sends a request for the given message ID and returns the
// payload of the reply. Only one request may be outstanding at a time;
// concurrent callers serialize behind the command mutex.
func (n *Node) RequestMessage(msgID byte) ([]byte, error) {
	match := func(f frame.Frame) bool {
		if f.ID == msgID {
			return true
		}
		// The stick answers an unservable request with a channel
		// response naming the request message itself.
		return f.ID == MsgChannelResponse &&
			len(f.Payload) >= 3 &&
			f.Payload[1] == MsgRequestMessage
	}

	fr, err := n.command("RequestMessage", MsgRequestMessage, []byte{0x00, msgID}, match)
	if err != nil {
		return nil, err
	}
	if fr.ID != msgID {
		if code := fr.Payload[2]; code != ResponseNoError {
			return nil, NewDeviceError("RequestMessage", fr.Payload[0], code)
		}
		return nil, fmt.Errorf("RequestMessage 0x%02X: %w", msgID, ErrUnexpectedResponse)
	}
	return fr.Payload, nil
}

// SetNetworkKey configures the 8-byte network key for a network slot.
// Required before opening any channel on that network.
func (n *Node) SetNetworkKey(slot byte, key [8]byte) error {
	if int(slot) >= MaxNetworks {
		return fmt.Errorf("network slot %d: %w", slot, ErrInvalidParameter)
	}
	return n.channelCommand("SetNetworkKey", MsgSetNetworkKey, slot, key[:]...)
}

// ResetSystem resets the device and waits for its startup notification.
// Some sticks swallow the notification after a warm reset, so a timeout
// degrades to a settle delay instead of failing.
func (n *Node) ResetSystem() error {
	match := func(f frame.Frame) bool { return f.ID == MsgStartup }
	_, err := n.command("ResetSystem", MsgResetSystem, []byte{0x00}, match)
	if errors.Is(err, ErrResponseTimeout) {
		n.config.Logger.Debug().Msg("no startup notification after reset, settling")
		time.Sleep(500 * time.Millisecond)
		return nil
	}
	return err
}

// Capabilities describes the device limits reported by the stick.
type Capabilities struct {
	MaxChannels      byte
	MaxNetworks      byte
	StandardOptions  byte
	AdvancedOptions  byte
	AdvancedOptions2 byte
}

// Capabilities queries the device capabilities message.
func (n *Node) Capabilities() (*Capabilities, error) {
	payload, err := n.RequestMessage(MsgCapabilities)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("capabilities: %w: %d bytes", ErrUnexpectedResponse, len(payload))
	}
	caps := &Capabilities{
		MaxChannels:     payload[0],
		MaxNetworks:     payload[1],
		StandardOptions: payload[2],
		AdvancedOptions: payload[3],
	}
	if len(payload) > 4 {
		caps.AdvancedOptions2 = payload[4]
	}
	if caps.MaxChannels > MaxChannels {
		caps.MaxChannels = MaxChannels
	}
	if caps.MaxNetworks > MaxNetworks {
		caps.MaxNetworks = MaxNetworks
	}
	return caps, nil
}

// ANTVersion queries the device's ANT protocol version string.
func (n *Node) ANTVersion() (string, error) {
	payload, err := n.RequestMessage(MsgANTVersion)
	if err != nil {
		return "", err
	}
	end := len(payload)
	for i, b := range payload {
		if b == 0 {
			end = i
			break
		}
	}
	return string(payload[:end]), nil
}

// SerialNumber queries the device serial number.
func (n *Node) SerialNumber() (uint32, error) {
	payload, err := n.RequestMessage(MsgSerialNumber)
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, fmt.Errorf("serial number: %w: %d bytes", ErrUnexpectedResponse, len(payload))
	}
	return binary.LittleEndian.Uint32(payload[:4]), nil
}

// EnableExtendedMessages toggles the channel ID extension on received
// messages, required for scanning.
func (n *Node) EnableExtendedMessages(enable bool) error {
	var b byte
	if enable {
		b = 1
	}
	return n.channelCommand("EnableExtendedMessages", MsgEnableExtRxMessages, 0x00, b)
}

// Channel lifecycle commands. Each maps to one outbound frame and waits for
// the correlated channel response.

func (n *Node) assignChannel(channel, channelType, network byte) error {
	return n.channelCommand("AssignChannel", MsgAssignChannel, channel, channelType, network)
}

func (n *Node) unassignChannel(channel byte) error {
	return n.channelCommand("UnassignChannel", MsgUnassignChannel, channel)
}

func (n *Node) setChannelID(channel byte, deviceID uint16, deviceType, transmissionType byte) error {
	var id [2]byte
	binary.LittleEndian.PutUint16(id[:], deviceID)
	return n.channelCommand("SetChannelID", MsgSetChannelID, channel, id[0], id[1], deviceType, transmissionType)
}

func (n *Node) setChannelPeriod(channel byte, period uint16) error {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], period)
	return n.channelCommand("SetChannelPeriod", MsgSetChannelPeriod, channel, p[0], p[1])
}

func (n *Node) setChannelRFFreq(channel, freq byte) error {
	return n.channelCommand("SetChannelRFFreq", MsgSetChannelRFFreq, channel, freq)
}

func (n *Node) setChannelSearchTimeout(channel, timeout byte) error {
	return n.channelCommand("SetChannelSearchTimeout", MsgSetChannelSearchTimeout, channel, timeout)
}

func (n *Node) openChannel(channel byte) error {
	return n.channelCommand("OpenChannel", MsgOpenChannel, channel)
}

func (n *Node) closeChannel(channel byte) error {
	return n.channelCommand("CloseChannel", MsgCloseChannel, channel)
}

func (n *Node) openRxScanMode() error {
	return n.channelCommand("OpenRxScanMode", MsgOpenRxScanMode, 0x00)
}

// NewChannel allocates the lowest free channel slot. Channels are returned
// to the pool by Close.
func (n *Node) NewChannel() (*Channel, error) {
	n.chanMu.Lock()
	defer n.chanMu.Unlock()
	for i := range n.channels {
		if n.channels[i] == nil {
			ch := &Channel{node: n, number: byte(i)}
			n.channels[i] = ch
			return ch, nil
		}
	}
	return nil, ErrNoFreeChannel
}

// releaseChannel returns a channel slot to the free pool.
func (n *Node) releaseChannel(num byte) {
	n.chanMu.Lock()
	if int(num) < MaxChannels && n.channels[num] != nil {
		n.channels[num] = nil
	}
	n.chanMu.Unlock()
}

// Stop tears the session down: any blocked synchronous caller observes
// ErrCancelled, then the dispatch worker, the pump, and the transport are
// stopped in that order. Every step runs regardless of earlier failures and
// the results are aggregated.
//
// Stop may be called from inside a broadcast callback; the dispatch join is
// bounded rather than unconditional so that case cannot self-deadlock.
func (n *Node) Stop() error {
	n.stopOnce.Do(func() {
		n.stopped.Store(true)
		close(n.stop)

		var errs []error

		join := time.NewTimer(500 * time.Millisecond)
		defer join.Stop()
		select {
		case <-n.dispatchDone:
		case <-join.C:
			// Stop was called from the dispatch goroutine itself; it
			// exits as soon as the running callback returns.
			n.config.Logger.Debug().Msg("stop called from dispatch context")
		}

		if err := n.pump.Stop(); err != nil {
			n.config.Logger.Debug().Err(err).Msg("failed to stop pump")
			errs = append(errs, err)
		}
		if err := n.transport.Close(); err != nil {
			n.config.Logger.Debug().Err(err).Msg("failed to close transport")
			errs = append(errs, err)
		}
		n.stopErr = errors.Join(errs...)
	})
	return n.stopErr
}
