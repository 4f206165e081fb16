/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package channels tracks the lifecycle of channel identifiers within one
// connection: the set of pending (initiator-half-only) ids, and the data
// held for each established channel.
package channels

import (
	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/buffer"
)

// Data holds everything owned by one established channel: its ingress
// buffer and its outgoing message queue, keyed by a monotonic output
// index assigned at enqueue time.
type Data struct {
	ID           channeler.ChannelID
	Buffer       buffer.Buffer
	outputBuffer map[int64][]byte
	nextOutput   int64
	nextSequence uint16
}

// newData constructs the per-channel bookkeeping struct for id.
func newData(id channeler.ChannelID) *Data {
	return &Data{ID: id, outputBuffer: make(map[int64][]byte)}
}

// HasOutgoingDataPending reports whether any queued outbound message has
// not yet been drained.
func (d *Data) HasOutgoingDataPending() bool {
	return len(d.outputBuffer) > 0
}

// AddOutgoingData queues data for egress, returning the monotonic index
// it was assigned.
func (d *Data) AddOutgoingData(data []byte) int64 {
	idx := d.nextOutput
	d.nextOutput++
	d.outputBuffer[idx] = data
	return idx
}

// TakeOutgoingData removes and returns the data queued at idx, if any.
func (d *Data) TakeOutgoingData(idx int64) ([]byte, bool) {
	data, ok := d.outputBuffer[idx]
	if ok {
		delete(d.outputBuffer, idx)
	}
	return data, ok
}

// PeekOutgoingData returns the data queued at idx without removing it.
func (d *Data) PeekOutgoingData(idx int64) ([]byte, bool) {
	data, ok := d.outputBuffer[idx]
	return data, ok
}

// LowestPendingIndex returns the smallest index still queued, so callers
// can drain the queue in FIFO (enqueue) order without tracking indices
// themselves.
func (d *Data) LowestPendingIndex() (int64, bool) {
	first := int64(0)
	found := false
	for idx := range d.outputBuffer {
		if !found || idx < first {
			first = idx
			found = true
		}
	}
	return first, found
}

// NextSequenceNo returns the next private-header sequence number for this
// channel's outgoing packets, incrementing the internal counter.
func (d *Data) NextSequenceNo() uint16 {
	n := d.nextSequence
	d.nextSequence++
	return n
}

// Set tracks pending and established channels for one connection. A
// pending entry already has a Data (keyed by partial id) so that writes
// arriving before the handshake completes have somewhere to queue; MakeFull
// (or Add, for the responder's FINALIZE path) carries that same Data
// struct - and whatever it has accumulated - over into the established
// map instead of replacing it. The zero value is not ready for use; call
// NewSet.
type Set struct {
	pending     map[channeler.ChannelID]*Data
	established map[channeler.ChannelID]*Data
}

// NewSet constructs an empty channel set.
func NewSet() *Set {
	return &Set{
		pending:     make(map[channeler.ChannelID]*Data),
		established: make(map[channeler.ChannelID]*Data),
	}
}

// HasChannel reports whether id is known, pending or established.
func (s *Set) HasChannel(id channeler.ChannelID) bool {
	return s.HasEstablishedChannel(id) || s.HasPendingChannel(id)
}

// HasEstablishedChannel reports whether id names an established channel.
func (s *Set) HasEstablishedChannel(id channeler.ChannelID) bool {
	_, ok := s.established[id]
	return ok
}

// HasPendingChannel reports whether id's initiator half matches a
// currently pending channel.
func (s *Set) HasPendingChannel(id channeler.ChannelID) bool {
	_, ok := s.pending[id.CreatePartial()]
	return ok
}

// promote returns id's established Data, creating it - from a pending
// entry with the same initiator half if one exists, or from scratch
// otherwise - if it doesn't exist yet.
func (s *Set) promote(id channeler.ChannelID) *Data {
	if d, ok := s.established[id]; ok {
		return d
	}

	partial := id.CreatePartial()
	if d, ok := s.pending[partial]; ok {
		delete(s.pending, partial)
		d.ID = id
		s.established[id] = d
		return d
	}

	d := newData(id)
	s.established[id] = d
	return d
}

// Add inserts id into the set: the default channel or any complete id
// becomes established (idempotently); a partial id (initiator half only)
// is recorded as pending. A responder-only id is rejected.
func (s *Set) Add(id channeler.ChannelID) *channeler.Error {
	if id.IsDefault() || id.IsComplete() {
		s.promote(id)
		return nil
	}

	if id.HasInitiator() {
		partial := id.CreatePartial()
		if _, ok := s.pending[partial]; !ok {
			s.pending[partial] = newData(partial)
		}
		return nil
	}

	return channeler.NewError(channeler.ErrInvalidChannelID, "channel id %+v has neither a complete nor a partial initiator half", id)
}

// NewPendingChannel generates a fresh partial channel id, adds it to the
// pending set and returns it.
func (s *Set) NewPendingChannel() (channeler.ChannelID, *channeler.Error) {
	id, err := channeler.NewPartialChannelID()
	if err != nil {
		return channeler.ChannelID{}, err
	}
	s.pending[id] = newData(id)
	return id, nil
}

// MakeFull promotes a previously-pending channel to established, carrying
// over any Data it already queued. id must already be complete.
func (s *Set) MakeFull(id channeler.ChannelID) *channeler.Error {
	if !id.IsComplete() {
		return channeler.NewError(channeler.ErrInvalidChannelID, "channel id %+v is not complete", id)
	}

	s.promote(id)
	return nil
}

// Get returns the Data for an established channel, or nil if id is not
// (yet) established.
func (s *Set) Get(id channeler.ChannelID) *Data {
	return s.established[id]
}

// GetPending returns the Data queued for id's still-pending handshake, or
// nil if id's initiator half has no pending entry.
func (s *Set) GetPending(id channeler.ChannelID) *Data {
	return s.pending[id.CreatePartial()]
}

// RemovePending drops id's initiator half from the pending set, used when
// a handshake fails (cookie mismatch, timeout) before ever completing.
func (s *Set) RemovePending(id channeler.ChannelID) {
	delete(s.pending, id.CreatePartial())
}

// EstablishedByInitiator looks for an already-established channel whose
// initiator half matches half, regardless of responder half. It exists
// for the responder's "session refresh" case: a repeated CHANNEL_NEW for
// an initiator half that already completed a handshake reuses the
// existing full id instead of negotiating a new one.
func (s *Set) EstablishedByInitiator(half uint16) (channeler.ChannelID, bool) {
	for id := range s.established {
		if id.Initiator == half {
			return id, true
		}
	}
	return channeler.ChannelID{}, false
}

// RemoveEstablished drops id from the established set entirely.
func (s *Set) RemoveEstablished(id channeler.ChannelID) {
	delete(s.established, id)
}

// PendingCount reports how many handshakes are currently in flight.
func (s *Set) PendingCount() int {
	return len(s.pending)
}

// EstablishedCount reports how many channels are currently established,
// including the default channel.
func (s *Set) EstablishedCount() int {
	return len(s.established)
}
