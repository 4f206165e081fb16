/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package channeler

import "testing"

func testPeerID(b byte) PeerID {
	var id PeerID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestPacketRoundTrip(t *testing.T) {
	p := Packet{
		Public: PublicHeader{
			Proto:      ProtocolMagic,
			Sender:     testPeerID(0xAA),
			Recipient:  testPeerID(0xBB),
			Channel:    DefaultChannelID,
			Flags:      Flags(FlagSpinBit),
			PacketSize: EnvelopeSize + 10,
		},
		Private: PrivateHeader{SequenceNo: 42},
		Payload: []byte("0123456789"),
	}

	raw, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) != int(p.Public.PacketSize) {
		t.Fatalf("encoded length %d, want %d", len(raw), p.Public.PacketSize)
	}
	if !HasValidChecksum(raw) {
		t.Fatal("checksum invalid after encode")
	}

	decoded, err := DecodePacket(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Public.Proto != p.Public.Proto {
		t.Fatalf("proto mismatch: %v != %v", decoded.Public.Proto, p.Public.Proto)
	}
	if decoded.Public.Sender != p.Public.Sender || decoded.Public.Recipient != p.Public.Recipient {
		t.Fatal("peer id mismatch")
	}
	if decoded.Public.Channel != p.Public.Channel {
		t.Fatalf("channel mismatch: %+v != %+v", decoded.Public.Channel, p.Public.Channel)
	}
	if decoded.Public.Flags != p.Public.Flags {
		t.Fatalf("flags mismatch: %v != %v", decoded.Public.Flags, p.Public.Flags)
	}
	if decoded.Private.SequenceNo != p.Private.SequenceNo {
		t.Fatalf("sequence_no mismatch: %v != %v", decoded.Private.SequenceNo, p.Private.SequenceNo)
	}
	if string(decoded.Payload) != string(p.Payload) {
		t.Fatalf("payload mismatch: %q != %q", decoded.Payload, p.Payload)
	}
	if !VerifyChecksum(decoded) {
		t.Fatal("round-tripped packet fails checksum verification")
	}
}

func TestPacketPadding(t *testing.T) {
	p := Packet{
		Public: PublicHeader{
			Proto:      ProtocolMagic,
			Channel:    DefaultChannelID,
			PacketSize: EnvelopeSize + 20,
		},
		Payload: []byte("hello"),
	}
	raw, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	padStart := PublicHeaderSize + PrivateHeaderSize + len(p.Payload)
	padEnd := len(raw) - FooterSize
	want := paddingByte(uint16(len(p.Payload)))
	for i := padStart; i < padEnd; i++ {
		if raw[i] != want {
			t.Fatalf("padding byte %d = %#x, want %#x", i, raw[i], want)
		}
	}
}

func TestPacketZeroPayloadEnvelopeOnly(t *testing.T) {
	// Mirrors the "packet with trailing garbage" scenario's shape: a
	// zero-payload packet whose declared packet_size accounts for the
	// full envelope only (public header + private header + footer, no
	// payload, no padding), trailing bytes on the wire buffer beyond
	// packet_size are left untouched by decoding.
	p := Packet{
		Public: PublicHeader{
			Proto:      ProtocolMagic,
			Channel:    DefaultChannelID,
			PacketSize: EnvelopeSize,
		},
	}
	raw, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) != EnvelopeSize {
		t.Fatalf("encoded length %d, want envelope size %d", len(raw), EnvelopeSize)
	}

	trailing := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	wire := append(append([]byte{}, raw...), trailing...)

	header, err := DecodePacketHeader(wire)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if int(header.PacketSize) != EnvelopeSize {
		t.Fatalf("packet_size = %#x, want %#x", header.PacketSize, EnvelopeSize)
	}

	decoded, err := DecodePacket(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Payload) != 0 {
		t.Fatalf("expected zero payload, got %d bytes", len(decoded.Payload))
	}
	if !HasValidChecksum(wire[:EnvelopeSize]) {
		t.Fatal("checksum invalid over the declared envelope")
	}
}

func TestDecodePacketRejectsShortPacketSize(t *testing.T) {
	buf := make([]byte, PublicHeaderSize)
	buf[PublicHeaderSize-1] = byte(EnvelopeSize - 1)
	_, err := DecodePacket(buf)
	if err == nil {
		t.Fatal("expected error for packet_size smaller than envelope")
	}
	if err.Kind != ErrDecode {
		t.Fatalf("got kind %v, want ErrDecode", err.Kind)
	}
}

func TestDecodePacketHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodePacketHeader(make([]byte, PublicHeaderSize-1))
	if err == nil {
		t.Fatal("expected error for undersized buffer")
	}
	if err.Kind != ErrInsufficientBufferSize {
		t.Fatalf("got kind %v, want ErrInsufficientBufferSize", err.Kind)
	}
}

func TestEncodePacketRejectsOversizedPayload(t *testing.T) {
	p := Packet{
		Public:  PublicHeader{PacketSize: EnvelopeSize},
		Payload: []byte("too big for zero budget"),
	}
	_, err := EncodePacket(p)
	if err == nil {
		t.Fatal("expected error for payload exceeding packet_size")
	}
	if err.Kind != ErrEncode {
		t.Fatalf("got kind %v, want ErrEncode", err.Kind)
	}
}

func TestTamperedChecksumDetected(t *testing.T) {
	p := Packet{
		Public:  PublicHeader{Proto: ProtocolMagic, PacketSize: EnvelopeSize + 4},
		Payload: []byte("abcd"),
	}
	raw, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[0] ^= 0xFF
	if HasValidChecksum(raw) {
		t.Fatal("expected checksum mismatch after tampering")
	}
}
