/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

import (
	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
)

// Data ferries application payload across established (or pending)
// channels: MsgData arriving from a peer becomes an ActionDataReceived for
// the host, and data the host wants to send is queued on the channel and
// (once the channel is established) surfaced as an out-event trigger.
type Data struct {
	Channels *channels.Set
}

// NewData constructs a Data FSM over cs.
func NewData(cs *channels.Set) *Data {
	return &Data{Channels: cs}
}

// Process implements FSM.
func (d *Data) Process(ev Event) (bool, []Action, []OutEvent) {
	switch ev.Type {
	case EventMessage:
		if ev.Message.Type != channeler.MsgData {
			return false, nil, nil
		}
		return d.handleMessage(ev)
	case EventUserDataWritten:
		return d.handleUserDataWritten(ev)
	default:
		return false, nil, nil
	}
}

func (d *Data) handleMessage(ev Event) (bool, []Action, []OutEvent) {
	if !d.Channels.HasEstablishedChannel(ev.Channel) {
		// Pending or unknown: either way there's no established channel
		// to deliver to yet, so drop silently rather than error.
		return true, nil, nil
	}
	return true, []Action{{Type: ActionDataReceived, Channel: ev.Channel, Data: ev.Message.Data}}, nil
}

func (d *Data) handleUserDataWritten(ev Event) (bool, []Action, []OutEvent) {
	if data := d.Channels.Get(ev.Channel); data != nil {
		data.AddOutgoingData(ev.Data)
		out := OutEvent{
			Channel: ev.Channel,
			Message: channeler.NewData(ev.Data),
		}
		return true, nil, []OutEvent{out}
	}

	if pending := d.Channels.GetPending(ev.Channel); pending != nil {
		// Channel is pending: queue the write for once the handshake
		// completes, but there is nothing to flush yet.
		pending.AddOutgoingData(ev.Data)
		return true, nil, nil
	}

	return true, []Action{{
		Type: ActionError,
		Err:  channeler.NewError(channeler.ErrInvalidChannelID, "write to unknown channel %08x", ev.Channel.Full()),
	}}, nil
}
