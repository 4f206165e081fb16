/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package channeler

import "fmt"

// ErrorKind is a stable, small integer identifying a class of failure.
// Values below 1000 are reserved for the runtime; 1000+ are free for
// embedding hosts to define their own.
type ErrorKind int

const (
	// ErrUnexpected marks a logic error or an impossible state.
	ErrUnexpected ErrorKind = iota + 1
	// ErrInsufficientBufferSize marks a buffer too small for the operation.
	ErrInsufficientBufferSize
	// ErrDecode marks a deserialization failure.
	ErrDecode
	// ErrEncode marks a serialization failure.
	ErrEncode
	// ErrInvalidChannelID marks a malformed or wrong-state channel id.
	ErrInvalidChannelID
	// ErrInvalidReference marks a nil or foreign pool slot.
	ErrInvalidReference
	// ErrInvalidPipeEvent marks a filter receiving the wrong event type.
	ErrInvalidPipeEvent
	// ErrInvalidMessageType marks an unknown message type code.
	ErrInvalidMessageType
	// ErrWrite marks a rejected channel write.
	ErrWrite
	// ErrState marks an FSM or pipe that could not progress.
	ErrState
)

var errKindNames = map[ErrorKind]string{
	ErrUnexpected:             "UNEXPECTED",
	ErrInsufficientBufferSize: "INSUFFICIENT_BUFFER_SIZE",
	ErrDecode:                 "DECODE",
	ErrEncode:                 "ENCODE",
	ErrInvalidChannelID:       "INVALID_CHANNELID",
	ErrInvalidReference:       "INVALID_REFERENCE",
	ErrInvalidPipeEvent:       "INVALID_PIPE_EVENT",
	ErrInvalidMessageType:     "INVALID_MESSAGE_TYPE",
	ErrWrite:                  "WRITE",
	ErrState:                  "STATE",
}

func (k ErrorKind) String() string {
	if name, ok := errKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the runtime's error type. There is no SUCCESS value: Go callers
// get a nil error on success instead.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewError builds an *Error with the given kind and a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err carries the given ErrorKind, so callers can use
// errors.Is(err, channeler.ErrWrite) style checks against a sentinel built
// from the kind alone.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel returns a bare *Error carrying only a Kind, suitable for use
// with errors.Is.
func Sentinel(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}
