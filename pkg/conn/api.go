/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package conn

import (
	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/buffer"
	"github.com/chanmux/channeler/pkg/fsm"
	"github.com/chanmux/channeler/pkg/pool"
)

// EstablishChannel begins a handshake with this connection's peer. A nil
// error only means the CHANNEL_NEW message was sent successfully; overall
// success is reported later, via the ChannelEstablishedFunc callback, once
// the peer's ACKNOWLEDGE/FINALIZE round trip completes.
func (c *Connection) EstablishChannel() (channeler.ChannelID, *channeler.Error) {
	actions, outEvents, handled := c.Registry.Dispatch(fsm.NewChannelRequestEvent(c.Node.Self, c.Peer))
	if !handled {
		return channeler.ChannelID{}, channeler.NewError(channeler.ErrState, "no fsm claimed channel establishment")
	}

	var id channeler.ChannelID
	var found bool
	for _, a := range actions {
		switch a.Type {
		case fsm.ActionChannelInitiated:
			id, found = a.Channel, true
		case fsm.ActionError:
			return channeler.ChannelID{}, a.Err
		}
	}
	if !found {
		return channeler.ChannelID{}, channeler.NewError(channeler.ErrState, "channel establishment produced no channel id")
	}

	for _, oe := range outEvents {
		if err := c.dispatchOutEvent(oe); err != nil {
			return channeler.ChannelID{}, err
		}
	}
	c.Logger.WithField("channel", id).Debug("channel establishment initiated")
	return id, nil
}

// dataChunkBudget returns the largest application payload a single
// MSG_DATA message can carry for this connection's packet size, after
// accounting for the message's own type code and length-prefix overhead.
func (c *Connection) dataChunkBudget() int {
	max := c.Egress.MaxPayload()
	candidate := max
	for candidate > 0 {
		size := channeler.NewData(make([]byte, candidate)).SerializedSize()
		if size <= max {
			return candidate
		}
		candidate -= size - max
	}
	return 0
}

// ChannelWrite sends application data on an established channel. Payloads
// larger than the per-message budget are split across multiple MSG_DATA
// messages when write chunking is enabled (the default); otherwise
// oversized writes are rejected with ErrWrite. It returns the number of
// bytes actually written before any error.
func (c *Connection) ChannelWrite(id channeler.ChannelID, data []byte) (int, *channeler.Error) {
	if id.IsDefault() || !id.HasResponder() {
		return 0, channeler.NewError(channeler.ErrInvalidChannelID, "cannot write application data to channel %+v", id)
	}
	if !c.Channels.HasEstablishedChannel(id) {
		return 0, channeler.NewError(channeler.ErrInvalidChannelID, "channel %+v is not established", id)
	}

	budget := c.dataChunkBudget()
	if len(data) > budget && !c.writeChunking {
		return 0, channeler.NewError(channeler.ErrWrite, "payload of %d bytes exceeds the %d-byte channel budget and write chunking is disabled", len(data), budget)
	}

	written := 0
	for written < len(data) {
		end := written + budget
		if end > len(data) {
			end = len(data)
		}
		chunk := data[written:end]

		handled, _, outEvents := c.Data.Process(fsm.NewUserDataWrittenEvent(id, chunk))
		if !handled {
			return written, channeler.NewError(channeler.ErrWrite, "data fsm did not accept write to channel %+v", id)
		}
		for _, oe := range outEvents {
			if err := c.dispatchOutEvent(oe); err != nil {
				return written, err
			}
		}
		written = end
	}
	return written, nil
}

// ChannelRead returns the oldest application payload queued for id, if
// any has arrived since the last call.
func (c *Connection) ChannelRead(id channeler.ChannelID) ([]byte, bool) {
	queue := c.incoming[id]
	if len(queue) == 0 {
		return nil, false
	}
	data := queue[0]
	if len(queue) == 1 {
		delete(c.incoming, id)
	} else {
		c.incoming[id] = queue[1:]
	}
	return data, true
}

// Allocate draws a fresh packet-sized slot from the node's shared pool,
// for a host transport to fill with a freshly received packet before
// handing it to ReceivedPacket.
func (c *Connection) Allocate() *pool.Slot {
	return c.Node.Pool.Allocate()
}

// ReceivedPacket runs a just-received packet (in slot) through the
// ingress pipe, surfacing channel-establishment and data-arrival
// notifications via the configured callbacks and forwarding any
// handshake reply the FSMs produced back out through the egress pipe.
func (c *Connection) ReceivedPacket(slot *pool.Slot) *channeler.Error {
	actions, outEvents, err := c.Ingress.Process(slot.Bytes())
	if err != nil {
		return err
	}

	for _, a := range actions {
		switch a.Type {
		case fsm.ActionChannelEstablished:
			c.Logger.WithField("channel", a.Channel).Debug("channel established")
			if c.onEstablished != nil {
				c.onEstablished(a.Channel)
			}
		case fsm.ActionDataReceived:
			c.incoming[a.Channel] = append(c.incoming[a.Channel], a.Data)
			if c.onDataAvailable != nil {
				c.onDataAvailable(a.Channel, len(a.Data))
			}
		case fsm.ActionError:
			c.Logger.WithError(a.Err).WithField("channel", a.Channel).Debug("fsm reported an error processing a received packet")
		}
	}

	for _, oe := range outEvents {
		if err := c.dispatchOutEvent(oe); err != nil {
			return err
		}
	}
	return nil
}

// PacketToSend dequeues the next packet ready for sending on id, if any.
// The host is responsible for writing entry.Slot.Bytes() to the
// transport and eventually calling entry.Slot.Release().
func (c *Connection) PacketToSend(id channeler.ChannelID) (buffer.Entry, bool) {
	data := c.Channels.Get(id)
	if data == nil {
		return buffer.Entry{}, false
	}
	return data.Buffer.Pop()
}
