/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package channeler

import "encoding/binary"

// MessageType identifies the shape of a message's payload. The type code
// itself is varint-encoded on the wire even though the numeric range
// currently in use fits in a single byte.
type MessageType uint16

const (
	// MsgUnknown is never valid on the wire; parsing a message with this
	// type code fails.
	MsgUnknown MessageType = 0

	// MsgChannelNew opens a channel-establishment handshake.
	MsgChannelNew MessageType = 10
	// MsgChannelAcknowledge is the responder's reply to MsgChannelNew.
	MsgChannelAcknowledge MessageType = 11
	// MsgChannelFinalize completes the handshake from the initiator side.
	MsgChannelFinalize MessageType = 12
	// MsgChannelCookie is a reserved accept-and-ignore message.
	MsgChannelCookie MessageType = 13

	// MsgData carries opaque application payload on an established or
	// pending channel.
	MsgData MessageType = 20
)

// fixedPayloadSize returns the exact payload size (excluding the type
// code) for fixed-size message types, or -1 if the type is variable-sized
// (length-prefixed), or -2 if the type is unknown.
func fixedPayloadSize(t MessageType) int {
	switch t {
	case MsgChannelNew:
		return 2 + 4 // initiator_half + cookie1
	case MsgChannelAcknowledge:
		return 4 + 4 // channel_id + cookie2
	case MsgChannelFinalize:
		return 4 + 4 + 2 // channel_id + cookie2 + capabilities
	case MsgChannelCookie:
		return 4 + 2 // cookie + capabilities
	case MsgData:
		return -1
	default:
		return -2
	}
}

// Message is a tagged union over all defined message payloads: only the
// fields relevant to Type are meaningful.
type Message struct {
	Type MessageType

	// MsgChannelNew
	InitiatorHalf uint16
	Cookie1       Cookie

	// MsgChannelAcknowledge / MsgChannelFinalize / MsgChannelCookie
	ChannelID    ChannelID
	Cookie2      Cookie
	Capabilities Capabilities

	// MsgData
	Data []byte
}

// NewChannelNew builds a MsgChannelNew message.
func NewChannelNew(initiatorHalf uint16, cookie1 Cookie) Message {
	return Message{Type: MsgChannelNew, InitiatorHalf: initiatorHalf, Cookie1: cookie1}
}

// NewChannelAcknowledge builds a MsgChannelAcknowledge message. The wire
// payload only carries the channel id and cookie2; cookie1 is not an
// argument and is not serialized.
func NewChannelAcknowledge(id ChannelID, cookie2 Cookie) Message {
	return Message{Type: MsgChannelAcknowledge, ChannelID: id, Cookie2: cookie2}
}

// NewChannelFinalize builds a MsgChannelFinalize message.
func NewChannelFinalize(id ChannelID, cookie2 Cookie, caps Capabilities) Message {
	return Message{Type: MsgChannelFinalize, ChannelID: id, Cookie2: cookie2, Capabilities: caps}
}

// NewChannelCookie builds a MsgChannelCookie message.
func NewChannelCookie(cookie2 Cookie, caps Capabilities) Message {
	return Message{Type: MsgChannelCookie, Cookie2: cookie2, Capabilities: caps}
}

// NewData builds a MsgData message wrapping the given opaque payload. The
// slice is referenced, not copied.
func NewData(data []byte) Message {
	return Message{Type: MsgData, Data: data}
}

// SerializedSize returns the total wire size of m, including its type
// code and, for variable-sized types, its length prefix.
func (m Message) SerializedSize() int {
	n := varintLen(uint64(m.Type))
	switch m.Type {
	case MsgData:
		n += varintLen(uint64(len(m.Data))) + len(m.Data)
	default:
		if size := fixedPayloadSize(m.Type); size > 0 {
			n += size
		}
	}
	return n
}

// Encode appends the wire encoding of m to buf and returns the result.
func (m Message) Encode(buf []byte) []byte {
	buf = encodeVarint(buf, uint64(m.Type))
	switch m.Type {
	case MsgChannelNew:
		buf = binary.BigEndian.AppendUint16(buf, m.InitiatorHalf)
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Cookie1))
	case MsgChannelAcknowledge:
		buf = binary.BigEndian.AppendUint32(buf, m.ChannelID.Full())
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Cookie2))
	case MsgChannelFinalize:
		buf = binary.BigEndian.AppendUint32(buf, m.ChannelID.Full())
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Cookie2))
		buf = binary.BigEndian.AppendUint16(buf, uint16(m.Capabilities))
	case MsgChannelCookie:
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Cookie2))
		buf = binary.BigEndian.AppendUint16(buf, uint16(m.Capabilities))
	case MsgData:
		buf = encodeVarint(buf, uint64(len(m.Data)))
		buf = append(buf, m.Data...)
	}
	return buf
}

// decodeMessage parses a single message from the front of buf, returning
// the parsed message and the number of bytes consumed.
func decodeMessage(buf []byte) (Message, int, *Error) {
	typeVal, n, err := decodeVarint(buf)
	if err != nil {
		return Message{}, 0, err
	}
	t := MessageType(typeVal)
	rest := buf[n:]

	size := fixedPayloadSize(t)
	if size == -2 {
		return Message{}, 0, NewError(ErrInvalidMessageType, "unknown message type %d", typeVal)
	}

	if size == -1 {
		// Variable-length: a varint length prefix, then that many bytes.
		length, lenBytes, err := decodeVarint(rest)
		if err != nil {
			return Message{}, 0, err
		}
		rest = rest[lenBytes:]
		if uint64(len(rest)) < length {
			return Message{}, 0, NewError(ErrDecode, "message payload truncated")
		}
		data := make([]byte, length)
		copy(data, rest[:length])
		consumed := n + lenBytes + int(length)
		return Message{Type: t, Data: data}, consumed, nil
	}

	if len(rest) < size {
		return Message{}, 0, NewError(ErrDecode, "message payload truncated")
	}

	msg := Message{Type: t}
	switch t {
	case MsgChannelNew:
		msg.InitiatorHalf = binary.BigEndian.Uint16(rest[0:2])
		msg.Cookie1 = Cookie(binary.BigEndian.Uint32(rest[2:6]))
	case MsgChannelAcknowledge:
		msg.ChannelID = ChannelIDFromFull(binary.BigEndian.Uint32(rest[0:4]))
		msg.Cookie2 = Cookie(binary.BigEndian.Uint32(rest[4:8]))
	case MsgChannelFinalize:
		msg.ChannelID = ChannelIDFromFull(binary.BigEndian.Uint32(rest[0:4]))
		msg.Cookie2 = Cookie(binary.BigEndian.Uint32(rest[4:8]))
		msg.Capabilities = Capabilities(binary.BigEndian.Uint16(rest[8:10]))
	case MsgChannelCookie:
		msg.Cookie2 = Cookie(binary.BigEndian.Uint32(rest[0:4]))
		msg.Capabilities = Capabilities(binary.BigEndian.Uint16(rest[4:6]))
	}
	return msg, n + size, nil
}

// Messages iterates over the messages packed into a packet payload. It is
// lenient about trailing bytes that don't form a complete message: those
// are simply left unconsumed and reported by Remaining. Iteration stops
// the moment a message fails to parse, which Next reports via its error
// return; whatever was already consumed (including a zero-message buffer)
// is not an error by itself.
type Messages struct {
	buf    []byte
	offset int
}

// NewMessages wraps buf for message iteration.
func NewMessages(buf []byte) *Messages {
	return &Messages{buf: buf}
}

// Next returns the next message and true, or false once iteration is
// exhausted or the next bytes don't parse as a message (in which case err
// is non-nil and the remaining bytes are left untouched).
func (m *Messages) Next() (msg Message, ok bool, err *Error) {
	if m.offset >= len(m.buf) {
		return Message{}, false, nil
	}
	msg, consumed, decErr := decodeMessage(m.buf[m.offset:])
	if decErr != nil {
		return Message{}, false, decErr
	}
	m.offset += consumed
	return msg, true, nil
}

// Remaining returns the number of bytes not yet consumed by Next.
func (m *Messages) Remaining() int {
	return len(m.buf) - m.offset
}

// All drains the iterator into a slice, stopping silently (without
// surfacing the parse error) at the first unparseable or trailing
// fragment, matching the protocol's "trailing junk is not an error" rule.
func (m *Messages) All() []Message {
	var out []Message
	for {
		msg, ok, err := m.Next()
		if err != nil || !ok {
			return out
		}
		out = append(out, msg)
	}
}
