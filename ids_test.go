/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package channeler

import "testing"

func TestPeerIDFromHex(t *testing.T) {
	want, err := NewRandomPeerID()
	if err != nil {
		t.Fatalf("NewRandomPeerID: %v", err)
	}
	got, err := PeerIDFromHex(want.String())
	if err != nil {
		t.Fatalf("PeerIDFromHex: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: %v != %v", got, want)
	}

	// Without the "0x" prefix should parse identically.
	got2, err := PeerIDFromHex(want.String()[2:])
	if err != nil {
		t.Fatalf("PeerIDFromHex (no prefix): %v", err)
	}
	if got2 != want {
		t.Fatal("unprefixed hex round trip mismatch")
	}
}

func TestPeerIDFromBytesWrongSize(t *testing.T) {
	_, err := PeerIDFromBytes(make([]byte, PeerIDSize-1))
	if err == nil {
		t.Fatal("expected error for wrong-sized input")
	}
}

func TestChannelIDFullRoundTrip(t *testing.T) {
	id := ChannelID{Initiator: 0xBEEF, Responder: 0xCAFE}
	full := id.Full()
	if full != 0xBEEFCAFE {
		t.Fatalf("Full() = %#x, want 0xBEEFCAFE", full)
	}
	back := ChannelIDFromFull(full)
	if back != id {
		t.Fatalf("round trip mismatch: %+v != %+v", back, id)
	}
}

func TestChannelIDDefault(t *testing.T) {
	if !DefaultChannelID.IsDefault() {
		t.Fatal("DefaultChannelID.IsDefault() should be true")
	}
	if DefaultChannelID.Full() != 0xF0F0F0F0 {
		t.Fatalf("DefaultChannelID.Full() = %#x, want 0xF0F0F0F0", DefaultChannelID.Full())
	}
	if !DefaultChannelID.Valid() {
		t.Fatal("DefaultChannelID must be valid")
	}
	if DefaultChannelID.IsComplete() {
		t.Fatal("sentinel halves should not count as complete")
	}
}

func TestChannelIDPartialVsComplete(t *testing.T) {
	partial := ChannelID{Initiator: 0x1234, Responder: channelIDSentinel}
	if !partial.IsPartial() {
		t.Fatal("expected partial")
	}
	if partial.IsComplete() {
		t.Fatal("partial id must not be complete")
	}
	if !partial.Valid() {
		t.Fatal("partial id must be valid")
	}

	complete := partial.WithResponder(0x5678)
	if !complete.IsComplete() {
		t.Fatal("expected complete")
	}
	if complete.IsPartial() {
		t.Fatal("complete id must not be partial")
	}
}

func TestChannelIDInvariantViolation(t *testing.T) {
	// Responder set without initiator set violates the invariant.
	bad := ChannelID{Initiator: channelIDSentinel, Responder: 0x1234}
	if bad.Valid() {
		t.Fatal("expected invalid: responder set without initiator")
	}
}

func TestRandomHalvesAvoidSentinel(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id, err := NewPartialChannelID()
		if err != nil {
			t.Fatalf("NewPartialChannelID: %v", err)
		}
		if id.Initiator == channelIDSentinel {
			t.Fatal("random initiator half must never be the sentinel")
		}
		r, err := NewResponderHalf()
		if err != nil {
			t.Fatalf("NewResponderHalf: %v", err)
		}
		if r == channelIDSentinel {
			t.Fatal("random responder half must never be the sentinel")
		}
	}
}

func TestProtocolIDValid(t *testing.T) {
	if !ProtocolMagic.Valid() {
		t.Fatal("ProtocolMagic must validate against itself")
	}
	if ProtocolID(0).Valid() {
		t.Fatal("zero protocol id must not validate")
	}
}
