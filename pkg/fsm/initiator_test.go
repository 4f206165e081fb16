/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

import (
	"testing"
	"time"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
	"github.com/chanmux/channeler/pkg/timeouts"
)

func fixedSecret(b byte) func() []byte {
	secret := []byte{b, b, b, b}
	return func() []byte { return secret }
}

func fakeSleep(amount time.Duration) time.Duration { return amount }

func TestInitiatorHandshakeSucceedsOnMatchingCookie(t *testing.T) {
	self := channeler.PeerID{1}
	peer := channeler.PeerID{2}
	cs := channels.NewSet()
	to := timeouts.New(fakeSleep)
	secret := fixedSecret(0xAB)

	in := NewInitiator(self, cs, to, secret)
	id, newOut, err := in.InitiateNewChannel(peer)
	if err != nil {
		t.Fatalf("InitiateNewChannel: %v", err)
	}
	if newOut.Message.Type != channeler.MsgChannelNew {
		t.Fatalf("expected MsgChannelNew, got %v", newOut.Message.Type)
	}

	full := id.WithResponder(0xCAFE)
	cookie2 := channeler.NewResponderCookie(secret(), self, peer, full)
	ack := channeler.NewChannelAcknowledge(full, cookie2)

	handled, actions, outEvents := in.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, ack))
	if !handled {
		t.Fatal("expected the acknowledge to be handled")
	}
	if len(actions) != 1 || actions[0].Type != ActionChannelEstablished {
		t.Fatalf("actions = %+v, want a single ActionChannelEstablished", actions)
	}
	if len(outEvents) != 1 || outEvents[0].Message.Type != channeler.MsgChannelFinalize {
		t.Fatalf("outEvents = %+v, want a single MsgChannelFinalize", outEvents)
	}
	if !cs.HasEstablishedChannel(full) {
		t.Fatal("channel should now be established")
	}
}

// TestInitiatorCookieMismatchAbortsHandshake mirrors the secret-rotation
// scenario: the responder's acknowledge is computed against a secret that
// rotated after CHANNEL_NEW was sent, so the cookie the initiator itself
// remembers sending no longer matches what it would compute now. The
// handshake must abort without a FINALIZE going out.
func TestInitiatorCookieMismatchAbortsHandshake(t *testing.T) {
	self := channeler.PeerID{1}
	peer := channeler.PeerID{2}
	cs := channels.NewSet()
	to := timeouts.New(fakeSleep)

	callCount := 0
	secrets := [][]byte{{0xAA}, {0xBB}}
	secret := func() []byte {
		s := secrets[callCount]
		callCount++
		return s
	}

	in := NewInitiator(self, cs, to, secret)
	id, _, err := in.InitiateNewChannel(peer)
	if err != nil {
		t.Fatalf("InitiateNewChannel: %v", err)
	}

	full := id.WithResponder(0xCAFE)
	cookie2 := channeler.NewResponderCookie(secrets[1], self, peer, full)
	ack := channeler.NewChannelAcknowledge(full, cookie2)

	handled, actions, outEvents := in.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, ack))
	if !handled {
		t.Fatal("expected the acknowledge to be handled (and rejected)")
	}
	if len(outEvents) != 0 {
		t.Fatalf("expected no FINALIZE to be emitted, got %+v", outEvents)
	}
	if len(actions) != 1 || actions[0].Type != ActionError {
		t.Fatalf("actions = %+v, want a single ActionError", actions)
	}
	if cs.HasChannel(id) || cs.HasChannel(full) {
		t.Fatal("pending channel should have been dropped on cookie mismatch")
	}
}

// TestInitiatorTimeoutCancelsPendingChannel mirrors the timeout scenario:
// a CHANNEL_NEW_TIMEOUT_TAG expiring for a still-pending channel drops it.
func TestInitiatorTimeoutCancelsPendingChannel(t *testing.T) {
	self := channeler.PeerID{1}
	peer := channeler.PeerID{2}
	cs := channels.NewSet()
	to := timeouts.New(fakeSleep)
	in := NewInitiator(self, cs, to, fixedSecret(0x01))

	id, _, err := in.InitiateNewChannel(peer)
	if err != nil {
		t.Fatalf("InitiateNewChannel: %v", err)
	}

	expired := to.Wait(in.ChannelNewTimeout)
	if len(expired) != 1 {
		t.Fatalf("expected exactly one expired timeout, got %+v", expired)
	}

	handled, actions, outEvents := in.Process(NewTimeoutEvent(expired[0]))
	if !handled {
		t.Fatal("expected the timeout to be handled")
	}
	if len(outEvents) != 0 {
		t.Fatalf("a timed-out handshake must not emit outgoing messages, got %+v", outEvents)
	}
	if len(actions) != 1 || actions[0].Type != ActionError {
		t.Fatalf("actions = %+v, want a single ActionError", actions)
	}
	if cs.HasChannel(id) {
		t.Fatal("pending channel should have been removed on timeout")
	}
}

// TestInitiatorHandshakeWithQueuedDataSendsCookie mirrors the "early
// write" scenario: application data was queued on the channel before the
// handshake completed, so the finalizing message must be CHANNEL_COOKIE
// rather than CHANNEL_FINALIZE.
func TestInitiatorHandshakeWithQueuedDataSendsCookie(t *testing.T) {
	self := channeler.PeerID{1}
	peer := channeler.PeerID{2}
	cs := channels.NewSet()
	to := timeouts.New(fakeSleep)
	secret := fixedSecret(0xAB)

	in := NewInitiator(self, cs, to, secret)
	id, _, err := in.InitiateNewChannel(peer)
	if err != nil {
		t.Fatalf("InitiateNewChannel: %v", err)
	}

	pending := cs.GetPending(id)
	if pending == nil {
		t.Fatal("expected a pending Data for the newly allocated channel")
	}
	pending.AddOutgoingData([]byte("queued before handshake completed"))

	full := id.WithResponder(0xCAFE)
	cookie2 := channeler.NewResponderCookie(secret(), self, peer, full)
	ack := channeler.NewChannelAcknowledge(full, cookie2)

	handled, actions, outEvents := in.Process(NewMessageEvent(peer, self, channeler.ChannelID{}, ack))
	if !handled {
		t.Fatal("expected the acknowledge to be handled")
	}
	if len(actions) != 1 || actions[0].Type != ActionChannelEstablished {
		t.Fatalf("actions = %+v, want a single ActionChannelEstablished", actions)
	}
	if len(outEvents) != 1 || outEvents[0].Message.Type != channeler.MsgChannelCookie {
		t.Fatalf("outEvents = %+v, want a single MsgChannelCookie", outEvents)
	}
}

func TestInitiatorHandlesNewChannelEvent(t *testing.T) {
	self := channeler.PeerID{1}
	peer := channeler.PeerID{2}
	cs := channels.NewSet()
	to := timeouts.New(fakeSleep)
	in := NewInitiator(self, cs, to, fixedSecret(0x01))

	handled, actions, outEvents := in.Process(NewChannelRequestEvent(self, peer))
	if !handled {
		t.Fatal("expected EventNewChannel to be handled")
	}
	if len(actions) != 1 || actions[0].Type != ActionChannelInitiated {
		t.Fatalf("actions = %+v, want a single ActionChannelInitiated", actions)
	}
	if len(outEvents) != 1 || outEvents[0].Message.Type != channeler.MsgChannelNew {
		t.Fatalf("outEvents = %+v, want a single MsgChannelNew", outEvents)
	}
	if !cs.HasPendingChannel(actions[0].Channel) {
		t.Fatal("the id reported via ActionChannelInitiated should be pending")
	}
}

func TestInitiatorIgnoresUnrelatedMessage(t *testing.T) {
	self := channeler.PeerID{1}
	cs := channels.NewSet()
	to := timeouts.New(fakeSleep)
	in := NewInitiator(self, cs, to, fixedSecret(0x01))

	handled, actions, outEvents := in.Process(NewMessageEvent(self, self, channeler.ChannelID{}, channeler.NewData([]byte("x"))))
	if handled {
		t.Fatal("initiator should not claim a MsgData event")
	}
	if actions != nil || outEvents != nil {
		t.Fatal("unhandled event should produce no actions or out events")
	}
}
