/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package buffer implements the per-channel FIFO of parsed packet headers
// and their pool-backed payload slots. It deliberately implements only a
// plain unbounded FIFO today; bounded buffers with an explicit overflow
// policy are a future extension point, not yet required by any FSM.
package buffer

import (
	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/pool"
)

// Entry pairs a parsed packet's public header with the pool slot backing
// its payload.
type Entry struct {
	Header channeler.PublicHeader
	Slot   *pool.Slot
}

// Buffer is an unbounded FIFO of Entry values belonging to one channel.
// The zero value is ready to use.
type Buffer struct {
	entries []Entry
}

// Push appends an entry to the tail of the buffer.
func (b *Buffer) Push(e Entry) {
	b.entries = append(b.entries, e)
}

// Pop removes and returns the head entry. ok is false if the buffer is
// empty.
func (b *Buffer) Pop() (e Entry, ok bool) {
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	e = b.entries[0]
	b.entries[0] = Entry{}
	b.entries = b.entries[1:]
	return e, true
}

// Empty reports whether the buffer currently holds no entries.
func (b *Buffer) Empty() bool {
	return len(b.entries) == 0
}

// Len returns the number of entries currently queued.
func (b *Buffer) Len() int {
	return len(b.entries)
}
