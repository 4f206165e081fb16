/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package fsm implements the channel-establishment and data-exchange state
// machines. Each FSM is handed one Event at a time and reports whether it
// handled it, along with any Actions (side effects for the host) and
// OutEvents (messages to send back out).
package fsm

import (
	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/timeouts"
)

// EventType discriminates the union held by Event.
type EventType int

const (
	// EventUnknown is the zero value and is never dispatched.
	EventUnknown EventType = iota
	// EventMessage carries a parsed Message arriving from a peer.
	EventMessage
	// EventTimeout carries a ScopedTag reported expired by the host.
	EventTimeout
	// EventUserDataWritten carries application data the local peer wants
	// to send on a channel.
	EventUserDataWritten
	// EventNewChannel requests that a handshake be started with Recipient.
	EventNewChannel
)

// Event is a tagged union of everything an FSM may be asked to process.
type Event struct {
	Type EventType

	// EventMessage
	Sender    channeler.PeerID
	Recipient channeler.PeerID
	Message   channeler.Message

	// EventTimeout
	ScopedTag timeouts.ScopedTag

	// EventUserDataWritten
	Channel channeler.ChannelID
	Data    []byte
}

// NewMessageEvent builds an EventMessage event. channel is the packet's
// channel id (attached by the channel-assign filter), not necessarily the
// same as any channel id embedded in the message payload itself.
func NewMessageEvent(sender, recipient channeler.PeerID, channel channeler.ChannelID, msg channeler.Message) Event {
	return Event{Type: EventMessage, Sender: sender, Recipient: recipient, Channel: channel, Message: msg}
}

// NewTimeoutEvent builds an EventTimeout event.
func NewTimeoutEvent(tag timeouts.ScopedTag) Event {
	return Event{Type: EventTimeout, ScopedTag: tag}
}

// NewUserDataWrittenEvent builds an EventUserDataWritten event.
func NewUserDataWrittenEvent(channel channeler.ChannelID, data []byte) Event {
	return Event{Type: EventUserDataWritten, Channel: channel, Data: data}
}

// NewChannelRequestEvent builds an EventNewChannel event asking the
// registry to start a handshake between sender and recipient.
func NewChannelRequestEvent(sender, recipient channeler.PeerID) Event {
	return Event{Type: EventNewChannel, Sender: sender, Recipient: recipient}
}
