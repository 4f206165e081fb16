/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

import (
	"time"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
	"github.com/chanmux/channeler/pkg/timeouts"
)

const (
	channelNewTimeoutScope uint16 = 0xc411
	channelTimeoutScope    uint16 = 0x114c

	// DefaultChannelNewTimeout is how long a CHANNEL_NEW handshake is
	// given to complete before the pending channel is abandoned.
	DefaultChannelNewTimeout = 200 * time.Millisecond
	// DefaultChannelTimeout is how long after establishment the initiator
	// considers a channel gone. The timer is armed once, when the channel
	// is established, and traffic on the channel does not reset it.
	DefaultChannelTimeout = 60 * time.Second
)

// Initiator drives the initiating side of channel establishment: it opens
// new channels, validates the responder's cookie, and times out
// handshakes or idle channels that never complete.
type Initiator struct {
	Self     channeler.PeerID
	Channels *channels.Set
	Timeouts *timeouts.Collection
	Secret   func() []byte

	ChannelNewTimeout time.Duration
	ChannelTimeout    time.Duration

	// pendingCookies remembers the cookie1 sent with each outstanding
	// CHANNEL_NEW, keyed by the pending channel's partial id. The wire
	// format for CHANNEL_ACKNOWLEDGE does not echo cookie1 back, so the
	// only way to detect a secret rotated mid-handshake is to compare a
	// freshly recomputed cookie1 against the one we ourselves sent,
	// rather than against anything the peer reports.
	pendingCookies map[channeler.ChannelID]channeler.Cookie
}

// NewInitiator constructs an Initiator FSM with the given collaborators.
// Zero ChannelNewTimeout/ChannelTimeout fall back to the package defaults.
func NewInitiator(self channeler.PeerID, cs *channels.Set, to *timeouts.Collection, secret func() []byte) *Initiator {
	return &Initiator{
		Self:              self,
		Channels:          cs,
		Timeouts:          to,
		Secret:            secret,
		ChannelNewTimeout: DefaultChannelNewTimeout,
		ChannelTimeout:    DefaultChannelTimeout,
		pendingCookies:    make(map[channeler.ChannelID]channeler.Cookie),
	}
}

// InitiateNewChannel begins a handshake with responder: it allocates a
// pending channel id, computes and remembers its cookie1, and returns the
// CHANNEL_NEW message to send along with the timeout it armed.
func (in *Initiator) InitiateNewChannel(responder channeler.PeerID) (channeler.ChannelID, OutEvent, *channeler.Error) {
	id, err := in.Channels.NewPendingChannel()
	if err != nil {
		return channeler.ChannelID{}, OutEvent{}, err
	}

	cookie1 := channeler.NewInitiatorCookie(in.Secret(), in.Self, responder, id.Initiator)
	in.pendingCookies[id] = cookie1

	in.Timeouts.Add(timeouts.ScopedTag{Scope: channelNewTimeoutScope, Tag: id.Initiator}, in.channelNewTimeout())

	out := OutEvent{
		Sender:    in.Self,
		Recipient: responder,
		Channel:   id,
		Message:   channeler.NewChannelNew(id.Initiator, cookie1),
	}
	return id, out, nil
}

func (in *Initiator) channelNewTimeout() time.Duration {
	if in.ChannelNewTimeout > 0 {
		return in.ChannelNewTimeout
	}
	return DefaultChannelNewTimeout
}

func (in *Initiator) channelTimeout() time.Duration {
	if in.ChannelTimeout > 0 {
		return in.ChannelTimeout
	}
	return DefaultChannelTimeout
}

// Process implements FSM.
func (in *Initiator) Process(ev Event) (bool, []Action, []OutEvent) {
	switch ev.Type {
	case EventMessage:
		if ev.Message.Type != channeler.MsgChannelAcknowledge {
			return false, nil, nil
		}
		return in.handleAcknowledge(ev)
	case EventTimeout:
		return in.handleTimeout(ev)
	case EventNewChannel:
		return in.handleNewChannel(ev)
	default:
		return false, nil, nil
	}
}

// handleNewChannel is the registry-mediated entry point for starting a
// handshake: it wraps InitiateNewChannel and reports the allocated id via
// ActionChannelInitiated, since Process/Dispatch have no channel-id return
// path of their own.
func (in *Initiator) handleNewChannel(ev Event) (bool, []Action, []OutEvent) {
	id, out, err := in.InitiateNewChannel(ev.Recipient)
	if err != nil {
		return true, []Action{{Type: ActionError, Err: err}}, nil
	}
	return true, []Action{{Type: ActionChannelInitiated, Channel: id}}, []OutEvent{out}
}

func (in *Initiator) handleAcknowledge(ev Event) (bool, []Action, []OutEvent) {
	id := ev.Message.ChannelID
	partial := id.CreatePartial()

	if !in.Channels.HasPendingChannel(partial) {
		return false, nil, nil
	}

	expected, ok := in.pendingCookies[partial]
	if !ok {
		return false, nil, nil
	}

	recomputed := channeler.NewInitiatorCookie(in.Secret(), in.Self, ev.Sender, id.Initiator)
	if recomputed != expected {
		in.Channels.RemovePending(partial)
		delete(in.pendingCookies, partial)
		in.Timeouts.Remove(timeouts.ScopedTag{Scope: channelNewTimeoutScope, Tag: id.Initiator})
		return true, []Action{{
			Type: ActionError,
			Err:  channeler.NewError(channeler.ErrState, "cookie mismatch for channel %08x, aborting handshake", id.Full()),
		}}, nil
	}

	delete(in.pendingCookies, partial)
	in.Timeouts.Remove(timeouts.ScopedTag{Scope: channelNewTimeoutScope, Tag: id.Initiator})

	if err := in.Channels.MakeFull(id); err != nil {
		return true, []Action{{Type: ActionError, Err: err}}, nil
	}
	in.Timeouts.Add(timeouts.ScopedTag{Scope: channelTimeoutScope, Tag: id.Initiator}, in.channelTimeout())

	var msg channeler.Message
	if data := in.Channels.Get(id); data != nil && data.HasOutgoingDataPending() {
		msg = channeler.NewChannelCookie(ev.Message.Cookie2, 0)
	} else {
		msg = channeler.NewChannelFinalize(id, ev.Message.Cookie2, 0)
	}

	finalize := OutEvent{
		Sender:    in.Self,
		Recipient: ev.Sender,
		Channel:   id,
		Message:   msg,
	}
	return true, []Action{{Type: ActionChannelEstablished, Channel: id}}, []OutEvent{finalize}
}

func (in *Initiator) handleTimeout(ev Event) (bool, []Action, []OutEvent) {
	if ev.ScopedTag.Scope != channelNewTimeoutScope && ev.ScopedTag.Scope != channelTimeoutScope {
		return false, nil, nil
	}

	half := ev.ScopedTag.Tag
	partial := channeler.ChannelID{Initiator: half}.CreatePartial()
	if !in.Channels.HasChannel(partial) {
		if _, ok := in.Channels.EstablishedByInitiator(half); !ok {
			return false, nil, nil
		}
	}

	if ev.ScopedTag.Scope == channelNewTimeoutScope {
		in.Channels.RemovePending(partial)
		delete(in.pendingCookies, partial)
		return true, []Action{{Type: ActionError, Err: channeler.NewError(channeler.ErrState, "channel new handshake for initiator half %04x timed out", half)}}, nil
	}

	if full, ok := in.Channels.EstablishedByInitiator(half); ok {
		in.Channels.RemoveEstablished(full)
		return true, []Action{{Type: ActionError, Err: channeler.NewError(channeler.ErrState, "channel %08x timed out", full.Full())}}, nil
	}
	return true, nil, nil
}
