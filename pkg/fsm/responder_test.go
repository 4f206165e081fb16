/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

import (
	"testing"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
)

func TestResponderAcknowledgesNewChannel(t *testing.T) {
	self := channeler.PeerID{9}
	peer := channeler.PeerID{8}
	cs := channels.NewSet()
	r := NewResponder(self, cs, fixedSecret(0x42))

	msg := channeler.NewChannelNew(0xBEEF, channeler.Cookie(0))
	handled, actions, outEvents := r.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, msg))
	if !handled {
		t.Fatal("expected CHANNEL_NEW to be handled")
	}
	if len(actions) != 0 {
		t.Fatalf("handle_new should not itself produce actions, got %+v", actions)
	}
	if len(outEvents) != 1 || outEvents[0].Message.Type != channeler.MsgChannelAcknowledge {
		t.Fatalf("outEvents = %+v, want a single MsgChannelAcknowledge", outEvents)
	}
	if outEvents[0].Message.ChannelID.Initiator != 0xBEEF {
		t.Fatalf("ack channel id initiator = %04x, want BEEF", outEvents[0].Message.ChannelID.Initiator)
	}
	// Stateless: the responder does not itself record anything pending.
	if cs.HasChannel(channeler.ChannelID{Initiator: 0xBEEF}.CreatePartial()) {
		t.Fatal("responder must not record pending state for an incoming CHANNEL_NEW")
	}
}

// TestResponderReusedChannelWithQueuedDataSendsCookie mirrors a repeated
// CHANNEL_NEW for an initiator half that already completed a handshake and
// has data queued for egress: the reply must be CHANNEL_COOKIE, not
// CHANNEL_ACKNOWLEDGE.
func TestResponderReusedChannelWithQueuedDataSendsCookie(t *testing.T) {
	self := channeler.PeerID{9}
	peer := channeler.PeerID{8}
	cs := channels.NewSet()
	r := NewResponder(self, cs, fixedSecret(0x42))

	full := channeler.ChannelID{Initiator: 0xBEEF, Responder: 0xCAFE}
	if err := cs.Add(full); err != nil {
		t.Fatalf("seed established channel: %v", err)
	}
	cs.Get(full).AddOutgoingData([]byte("queued for this session"))

	msg := channeler.NewChannelNew(0xBEEF, channeler.Cookie(0))
	handled, actions, outEvents := r.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, msg))
	if !handled {
		t.Fatal("expected CHANNEL_NEW to be handled")
	}
	if len(actions) != 0 {
		t.Fatalf("handle_new should not itself produce actions, got %+v", actions)
	}
	if len(outEvents) != 1 || outEvents[0].Message.Type != channeler.MsgChannelCookie {
		t.Fatalf("outEvents = %+v, want a single MsgChannelCookie", outEvents)
	}
}

func TestResponderFinalizeEstablishesChannelOnMatchingCookie(t *testing.T) {
	self := channeler.PeerID{9}
	peer := channeler.PeerID{8}
	cs := channels.NewSet()
	secret := fixedSecret(0x42)
	r := NewResponder(self, cs, secret)

	full := channeler.ChannelID{Initiator: 0xBEEF, Responder: 0xCAFE}
	cookie2 := channeler.NewResponderCookie(secret(), peer, self, full)
	finalize := channeler.NewChannelFinalize(full, cookie2, 0)

	handled, actions, outEvents := r.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, finalize))
	if !handled {
		t.Fatal("expected FINALIZE to be handled")
	}
	if len(outEvents) != 0 {
		t.Fatalf("finalize should not emit outgoing messages, got %+v", outEvents)
	}
	if len(actions) != 1 || actions[0].Type != ActionChannelEstablished {
		t.Fatalf("actions = %+v, want a single ActionChannelEstablished", actions)
	}
	if !cs.HasEstablishedChannel(full) {
		t.Fatal("channel should now be established")
	}
}

func TestResponderFinalizeRejectsMismatchingCookie(t *testing.T) {
	self := channeler.PeerID{9}
	peer := channeler.PeerID{8}
	cs := channels.NewSet()
	r := NewResponder(self, cs, fixedSecret(0x42))

	full := channeler.ChannelID{Initiator: 0xBEEF, Responder: 0xCAFE}
	finalize := channeler.NewChannelFinalize(full, channeler.Cookie(0xDEADBEEF), 0)

	handled, _, outEvents := r.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, finalize))
	if handled {
		t.Fatal("a mismatching cookie must not be reported as handled")
	}
	if len(outEvents) != 0 {
		t.Fatal("no outgoing messages on a rejected finalize")
	}
	if cs.HasEstablishedChannel(full) {
		t.Fatal("channel must not become established on a bad cookie")
	}
}

func TestResponderFinalizeIgnoresAlreadyEstablished(t *testing.T) {
	self := channeler.PeerID{9}
	peer := channeler.PeerID{8}
	cs := channels.NewSet()
	secret := fixedSecret(0x42)
	r := NewResponder(self, cs, secret)

	full := channeler.ChannelID{Initiator: 0xBEEF, Responder: 0xCAFE}
	if err := cs.Add(full); err != nil {
		t.Fatalf("seed established channel: %v", err)
	}

	finalize := channeler.NewChannelFinalize(full, channeler.Cookie(0), 0)
	handled, actions, outEvents := r.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, finalize))
	if !handled {
		t.Fatal("a finalize for an already-established channel is still handled")
	}
	if len(actions) != 0 || len(outEvents) != 0 {
		t.Fatalf("retransmitted finalize should be a no-op, got actions=%+v outEvents=%+v", actions, outEvents)
	}
}
