/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package channeler

import (
	"encoding/binary"
	"hash/crc32"
)

const (
	// PublicHeaderSize is the fixed size, in bytes, of a packet's public
	// header.
	PublicHeaderSize = 4 /* proto */ + PeerIDSize /* sender */ + PeerIDSize /* recipient */ +
		4 /* channel */ + 2 /* flags */ + 2 /* packet_size */

	// PrivateHeaderSize is the fixed size, in bytes, of a packet's
	// (potentially encrypted) private header.
	PrivateHeaderSize = 2 /* sequence_no */ + 2 /* payload_size */

	// FooterSize is the fixed size, in bytes, of a packet's footer.
	FooterSize = 4 /* checksum */

	// EnvelopeSize is the combined size of public header, private header
	// and footer: everything in a packet but payload and padding.
	EnvelopeSize = PublicHeaderSize + PrivateHeaderSize + FooterSize
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// PublicHeader is the unencrypted envelope of a packet.
type PublicHeader struct {
	Proto      ProtocolID
	Sender     PeerID
	Recipient  PeerID
	Channel    ChannelID
	Flags      Flags
	PacketSize uint16
}

// PrivateHeader is the (potentially encrypted) second part of a packet's
// envelope.
type PrivateHeader struct {
	SequenceNo  uint16
	PayloadSize uint16
}

// Packet is a fully decoded packet: its two headers plus the payload
// bytes (without padding) and the footer checksum that was read from the
// wire.
type Packet struct {
	Public   PublicHeader
	Private  PrivateHeader
	Payload  []byte
	Checksum uint32
}

// paddingByte computes the PKCS#7-inspired (semantics-free) padding value
// for a given payload size.
func paddingByte(payloadSize uint16) byte {
	return byte(int(payloadSize) % 255)
}

// EncodePacket serializes p into a buffer of exactly p.Public.PacketSize
// bytes, computing padding and the footer checksum. It fails if the
// packet size is too small for the envelope plus payload.
func EncodePacket(p Packet) ([]byte, *Error) {
	total := int(p.Public.PacketSize)
	if total < EnvelopeSize+len(p.Payload) {
		return nil, NewError(ErrEncode, "packet_size %d too small for envelope+payload (%d)", total, EnvelopeSize+len(p.Payload))
	}

	buf := make([]byte, total)
	off := 0

	binary.BigEndian.PutUint32(buf[off:], uint32(p.Public.Proto))
	off += 4
	copy(buf[off:], p.Public.Sender[:])
	off += PeerIDSize
	copy(buf[off:], p.Public.Recipient[:])
	off += PeerIDSize
	binary.BigEndian.PutUint32(buf[off:], p.Public.Channel.Full())
	off += 4
	binary.BigEndian.PutUint16(buf[off:], uint16(p.Public.Flags))
	off += 2
	binary.BigEndian.PutUint16(buf[off:], p.Public.PacketSize)
	off += 2

	binary.BigEndian.PutUint16(buf[off:], p.Private.SequenceNo)
	off += 2
	payloadSize := uint16(len(p.Payload))
	binary.BigEndian.PutUint16(buf[off:], payloadSize)
	off += 2

	copy(buf[off:], p.Payload)
	off += len(p.Payload)

	pad := paddingByte(payloadSize)
	footerStart := total - FooterSize
	for i := off; i < footerStart; i++ {
		buf[i] = pad
	}

	checksum := crc32.Checksum(buf[:footerStart], castagnoliTable)
	binary.BigEndian.PutUint32(buf[footerStart:], checksum)

	return buf, nil
}

// DecodePacketHeader parses only the public header out of the first
// PublicHeaderSize bytes of buf, without validating the footer or
// touching the payload. This is the ingress pipe's "de-envelope" step.
func DecodePacketHeader(buf []byte) (PublicHeader, *Error) {
	if len(buf) < PublicHeaderSize {
		return PublicHeader{}, NewError(ErrInsufficientBufferSize, "buffer too small for public header: %d < %d", len(buf), PublicHeaderSize)
	}
	var h PublicHeader
	off := 0
	h.Proto = ProtocolID(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	copy(h.Sender[:], buf[off:off+PeerIDSize])
	off += PeerIDSize
	copy(h.Recipient[:], buf[off:off+PeerIDSize])
	off += PeerIDSize
	h.Channel = ChannelIDFromFull(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	h.Flags = Flags(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	h.PacketSize = binary.BigEndian.Uint16(buf[off:])
	return h, nil
}

// DecodePacket fully parses a packet out of the front of buf. Only the
// first PacketSize bytes (as declared by the public header) are
// consumed; any remaining bytes in buf are untouched and not an error,
// matching the protocol's tolerance of trailing garbage on stream
// transports.
func DecodePacket(buf []byte) (Packet, *Error) {
	header, err := DecodePacketHeader(buf)
	if err != nil {
		return Packet{}, err
	}
	total := int(header.PacketSize)
	if total < EnvelopeSize {
		return Packet{}, NewError(ErrDecode, "packet_size %d smaller than envelope size %d", total, EnvelopeSize)
	}
	if len(buf) < total {
		return Packet{}, NewError(ErrInsufficientBufferSize, "buffer too small for declared packet_size: %d < %d", len(buf), total)
	}

	off := PublicHeaderSize
	var priv PrivateHeader
	priv.SequenceNo = binary.BigEndian.Uint16(buf[off:])
	off += 2
	priv.PayloadSize = binary.BigEndian.Uint16(buf[off:])
	off += 2

	if int(priv.PayloadSize) > total-EnvelopeSize {
		return Packet{}, NewError(ErrDecode, "payload_size %d exceeds available space %d", priv.PayloadSize, total-EnvelopeSize)
	}

	payload := make([]byte, priv.PayloadSize)
	copy(payload, buf[off:off+int(priv.PayloadSize)])

	footerStart := total - FooterSize
	checksum := binary.BigEndian.Uint32(buf[footerStart:total])

	return Packet{
		Public:   header,
		Private:  priv,
		Payload:  payload,
		Checksum: checksum,
	}, nil
}

// HasValidChecksum reports whether raw (the full, exact-size packet
// buffer this Packet was decoded from, or an equivalent re-encoding)
// carries a footer checksum matching its contents. Callers that only
// have the decoded Packet (not the original buffer) should use
// VerifyChecksum instead.
func HasValidChecksum(raw []byte) bool {
	if len(raw) < EnvelopeSize {
		return false
	}
	footerStart := len(raw) - FooterSize
	want := binary.BigEndian.Uint32(raw[footerStart:])
	got := crc32.Checksum(raw[:footerStart], castagnoliTable)
	return want == got
}

// VerifyChecksum reports whether p.Checksum matches what re-encoding p
// would produce. EncodePacket must succeed for this to be meaningful;
// a failure to encode is treated as an invalid checksum.
func VerifyChecksum(p Packet) bool {
	raw, err := EncodePacket(p)
	if err != nil {
		return false
	}
	return binary.BigEndian.Uint32(raw[len(raw)-FooterSize:]) == p.Checksum
}
