/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package channeler

import (
	"encoding/binary"
	"hash/crc32"
)

// Cookie is a 32-bit keyed checksum used to admit handshake messages
// without the responder keeping per-pending-channel state. The "keyed"
// part is currently realized as CRC32 over secret-prefixed input, a
// placeholder for a real MAC (see the package-level cryptography note in
// DESIGN.md).
type Cookie uint32

// NewInitiatorCookie computes the cookie carried in CHANNEL_NEW, keyed
// over (secret || initiator || responder || initiatorHalf).
func NewInitiatorCookie(secret []byte, initiator, responder PeerID, initiatorHalf uint16) Cookie {
	buf := make([]byte, 0, len(secret)+PeerIDSize*2+2)
	buf = append(buf, secret...)
	buf = append(buf, initiator[:]...)
	buf = append(buf, responder[:]...)
	buf = binary.BigEndian.AppendUint16(buf, initiatorHalf)
	return Cookie(crc32.ChecksumIEEE(buf))
}

// NewResponderCookie computes the cookie carried in CHANNEL_ACKNOWLEDGE /
// CHANNEL_FINALIZE, keyed over (secret || initiator || responder || id).
func NewResponderCookie(secret []byte, initiator, responder PeerID, id ChannelID) Cookie {
	buf := make([]byte, 0, len(secret)+PeerIDSize*2+4)
	buf = append(buf, secret...)
	buf = append(buf, initiator[:]...)
	buf = append(buf, responder[:]...)
	buf = binary.BigEndian.AppendUint32(buf, id.Full())
	return Cookie(crc32.ChecksumIEEE(buf))
}

// ValidateInitiatorCookie reports whether c matches the initiator cookie
// computed from the given arguments.
func ValidateInitiatorCookie(c Cookie, secret []byte, initiator, responder PeerID, initiatorHalf uint16) bool {
	return c == NewInitiatorCookie(secret, initiator, responder, initiatorHalf)
}

// ValidateResponderCookie reports whether c matches the responder cookie
// computed from the given arguments.
func ValidateResponderCookie(c Cookie, secret []byte, initiator, responder PeerID, id ChannelID) bool {
	return c == NewResponderCookie(secret, initiator, responder, id)
}
