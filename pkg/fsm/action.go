/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

import "github.com/chanmux/channeler"

// ActionType discriminates the union held by Action.
type ActionType int

const (
	// ActionUnknown is the zero value and should never appear in an
	// Action returned from Process.
	ActionUnknown ActionType = iota
	// ActionChannelEstablished notifies the host that Channel has
	// completed its handshake and is ready for application data.
	ActionChannelEstablished
	// ActionDataReceived hands the host application payload read from an
	// established channel.
	ActionDataReceived
	// ActionError reports a failure the host may want to log or surface;
	// it never represents a protocol abort by itself.
	ActionError
	// ActionChannelInitiated reports the pending channel id allocated in
	// response to an EventNewChannel request.
	ActionChannelInitiated
)

// Action is a side effect an FSM asks the host to perform.
type Action struct {
	Type    ActionType
	Channel channeler.ChannelID
	Data    []byte
	Err     *channeler.Error
}

// OutEvent is a message an FSM wants sent to a peer.
type OutEvent struct {
	Sender    channeler.PeerID
	Recipient channeler.PeerID
	Channel   channeler.ChannelID
	Message   channeler.Message
}
