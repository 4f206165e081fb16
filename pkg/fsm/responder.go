/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

import (
	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
)

// Responder drives the responding side of channel establishment. It is
// deliberately stateless between CHANNEL_NEW and CHANNEL_FINALIZE: instead
// of remembering pending channels in a way an attacker could exhaust, it
// admits a handshake by recomputing a keyed cookie and checking it against
// what the peer echoes back.
type Responder struct {
	Self     channeler.PeerID
	Channels *channels.Set
	Secret   func() []byte
}

// NewResponder constructs a Responder FSM.
func NewResponder(self channeler.PeerID, cs *channels.Set, secret func() []byte) *Responder {
	return &Responder{Self: self, Channels: cs, Secret: secret}
}

// Process implements FSM.
func (r *Responder) Process(ev Event) (bool, []Action, []OutEvent) {
	if ev.Type != EventMessage {
		return false, nil, nil
	}
	switch ev.Message.Type {
	case channeler.MsgChannelNew:
		return r.handleNew(ev)
	case channeler.MsgChannelFinalize:
		return r.handleFinalize(ev)
	case channeler.MsgChannelCookie:
		return r.handleCookie(ev)
	default:
		return false, nil, nil
	}
}

// handleNew never records any state of its own: the responder stays
// stateless across CHANNEL_NEW/CHANNEL_FINALIZE, relying entirely on the
// cookie to admit a later FINALIZE. has_pending_channel only ever matches
// here if this same peer, in its initiator role, happens to have chosen
// the same initiator half for a channel of its own; that coincidence is
// treated as crossed wires rather than silently colliding.
func (r *Responder) handleNew(ev Event) (bool, []Action, []OutEvent) {
	half := ev.Message.InitiatorHalf
	partial := channeler.ChannelID{Initiator: half}.CreatePartial()

	if r.Channels.HasPendingChannel(partial) {
		r.Channels.RemovePending(partial)
		return false, nil, nil
	}

	full, ok := r.Channels.EstablishedByInitiator(half)
	if !ok {
		responderHalf, err := channeler.NewResponderHalf()
		if err != nil {
			return true, []Action{{Type: ActionError, Err: err}}, nil
		}
		full = channeler.ChannelID{Initiator: half, Responder: responderHalf}
	}

	cookie2 := channeler.NewResponderCookie(r.Secret(), ev.Sender, r.Self, full)

	var msg channeler.Message
	if data := r.Channels.Get(full); ok && data != nil && data.HasOutgoingDataPending() {
		msg = channeler.NewChannelCookie(cookie2, 0)
	} else {
		msg = channeler.NewChannelAcknowledge(full, cookie2)
	}

	ack := OutEvent{
		Sender:    r.Self,
		Recipient: ev.Sender,
		Channel:   full,
		Message:   msg,
	}
	return true, nil, []OutEvent{ack}
}

func (r *Responder) handleFinalize(ev Event) (bool, []Action, []OutEvent) {
	full := ev.Message.ChannelID
	partial := full.CreatePartial()

	if r.Channels.HasPendingChannel(partial) {
		r.Channels.RemovePending(partial)
		return false, nil, nil
	}

	if r.Channels.HasEstablishedChannel(full) {
		// Already finalized (e.g. a retransmit); nothing further to do.
		return true, nil, nil
	}

	expected := channeler.NewResponderCookie(r.Secret(), ev.Sender, r.Self, full)
	if expected != ev.Message.Cookie2 {
		// The secret may have rotated between ACKNOWLEDGE and FINALIZE;
		// silently ignoring (rather than erroring) avoids punishing a
		// peer caught by an ordinary rotation race.
		return false, nil, nil
	}

	if err := r.Channels.Add(full); err != nil {
		return true, []Action{{Type: ActionError, Err: err}}, nil
	}
	return true, []Action{{Type: ActionChannelEstablished, Channel: full}}, nil
}

func (r *Responder) handleCookie(ev Event) (bool, []Action, []OutEvent) {
	// CHANNEL_COOKIE is accepted and otherwise ignored: receiving it
	// establishes no channel and produces no action.
	return true, nil, nil
}
