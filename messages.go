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

// ANT message IDs as carried in the frame header.
const (
	// Configuration messages
	MsgUnassignChannel         byte = 0x41
	MsgAssignChannel           byte = 0x42
	MsgSetChannelPeriod        byte = 0x43
	MsgSetChannelSearchTimeout byte = 0x44
	MsgSetChannelRFFreq        byte = 0x45
	MsgSetNetworkKey           byte = 0x46
	MsgSetTransmitPower        byte = 0x47
	MsgSetChannelID            byte = 0x51
	MsgEnableExtRxMessages     byte = 0x66
	MsgLibConfig               byte = 0x6E

	// Control messages
	MsgResetSystem    byte = 0x4A
	MsgOpenChannel    byte = 0x4B
	MsgCloseChannel   byte = 0x4C
	MsgRequestMessage byte = 0x4D
	MsgOpenRxScanMode byte = 0x5B
	MsgSleep          byte = 0xC5

	// Data messages
	MsgBroadcastData    byte = 0x4E
	MsgAcknowledgedData byte = 0x4F
	MsgBurstData        byte = 0x50

	// Responses and notifications
	MsgChannelResponse byte = 0x40
	MsgChannelStatus   byte = 0x52
	MsgChannelID       byte = 0x51
	MsgANTVersion      byte = 0x3E
	MsgCapabilities    byte = 0x54
	MsgSerialNumber    byte = 0x61
	MsgStartup         byte = 0x6F
	MsgSerialError     byte = 0xAE
)

// Channel response and event codes (third byte of a channel response frame).
const (
	ResponseNoError             byte = 0x00
	EventRxSearchTimeout        byte = 0x01
	EventRxFail                 byte = 0x02
	EventTx                     byte = 0x03
	EventTransferRxFailed       byte = 0x04
	EventTransferTxCompleted    byte = 0x05
	EventTransferTxFailed       byte = 0x06
	EventChannelClosed          byte = 0x07
	EventRxFailGoToSearch       byte = 0x08
	EventChannelCollision       byte = 0x09
	EventTransferTxStart        byte = 0x0A
	CodeChannelInWrongState     byte = 0x15
	CodeChannelNotOpened        byte = 0x16
	CodeChannelIDNotSet         byte = 0x18
	CodeCloseAllChannels        byte = 0x19
	CodeTransferInProgress      byte = 0x1F
	CodeTransferSequenceError   byte = 0x20
	CodeTransferInError         byte = 0x21
	CodeMessageSizeExceedsLimit byte = 0x27
	CodeInvalidMessage          byte = 0x28
	CodeInvalidNetworkNumber    byte = 0x29
	CodeInvalidListID           byte = 0x30
	CodeInvalidScanTxChannel    byte = 0x31
	CodeInvalidParameter        byte = 0x33
	CodeSerialQueueOverflow     byte = 0x34
	CodeQueueOverflow           byte = 0x35
)

// Channel assignment types.
const (
	ChannelTypeReceive     byte = 0x00 // bidirectional slave
	ChannelTypeTransmit    byte = 0x10 // bidirectional master
	ChannelTypeReceiveOnly byte = 0x40 // receive-only, used for scanning
)

// Node capacity limits. Real devices report their own limits via the
// capabilities message, but every ANT USB stick on the market tops out here.
const (
	MaxChannels = 8
	MaxNetworks = 8
)

// Extended message flag carried after the 8 data bytes of a broadcast when
// extended RX messages are enabled. The channel ID extension appends the
// transmitting device's ID to every received payload.
const extFlagChannelID byte = 0x80

// ANTPlusNetworkKey is the public ANT+ network key, required on the network
// slot used by any ANT+ device profile.
var ANTPlusNetworkKey = [8]byte{0xB9, 0xA5, 0x21, 0xFB, 0xBD, 0x72, 0xC3, 0x45}

// ANTPlusRFFrequency is the ANT+ RF channel (2400 MHz + 57 = 2457 MHz).
const ANTPlusRFFrequency byte = 57

// codeMeaning returns a human-readable meaning for channel response codes.
func codeMeaning(code byte) string {
	meanings := map[byte]string{
		ResponseNoError:             "no error",
		EventRxSearchTimeout:        "search timeout",
		EventRxFail:                 "receive failed",
		EventTx:                     "transmit completed",
		EventTransferRxFailed:       "transfer receive failed",
		EventTransferTxCompleted:    "transfer transmit completed",
		EventTransferTxFailed:       "transfer transmit failed",
		EventChannelClosed:          "channel closed",
		EventRxFailGoToSearch:       "receive failed, returning to search",
		EventChannelCollision:       "channel collision",
		EventTransferTxStart:        "transfer transmit started",
		CodeChannelInWrongState:     "channel in wrong state",
		CodeChannelNotOpened:        "channel not opened",
		CodeChannelIDNotSet:         "channel ID not set",
		CodeCloseAllChannels:        "all channels must be closed",
		CodeTransferInProgress:      "transfer in progress",
		CodeTransferSequenceError:   "transfer sequence number error",
		CodeTransferInError:         "transfer in error",
		CodeMessageSizeExceedsLimit: "message size exceeds limit",
		CodeInvalidMessage:          "invalid message",
		CodeInvalidNetworkNumber:    "invalid network number",
		CodeInvalidListID:           "invalid list ID",
		CodeInvalidScanTxChannel:    "cannot transmit on channel 0 while in scan mode",
		CodeInvalidParameter:        "invalid parameter provided",
		CodeSerialQueueOverflow:     "serial queue overflow",
		CodeQueueOverflow:           "receive queue overflow",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown code"
}
