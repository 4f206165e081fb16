/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package pipe

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/buffer"
	"github.com/chanmux/channeler/pkg/channels"
	"github.com/chanmux/channeler/pkg/pool"
)

// Egress runs the send-side pipeline: enqueue a message onto its channel's
// outgoing queue, then bundle as many queued messages as fit into one
// packet, checksum it, and push it onto the channel's buffer for the host
// to drain via PacketToSend. There is no separate "callback" stage here:
// the original's decoupling of bundling from delivery is collapsed into a
// direct push onto buffer.Buffer, which is itself already a drain point.
type Egress struct {
	Channels   *channels.Set
	Pool       *pool.Pool
	PacketSize int
	Logger     *logrus.Entry

	Self  channeler.PeerID
	Proto channeler.ProtocolID
}

// NewEgress constructs an Egress pipeline. A nil logger installs a
// discarding one.
func NewEgress(self channeler.PeerID, cs *channels.Set, p *pool.Pool, packetSize int, logger *logrus.Entry) *Egress {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = logrus.NewEntry(discard)
	}
	return &Egress{
		Channels:   cs,
		Pool:       p,
		PacketSize: packetSize,
		Logger:     logger,
		Self:       self,
		Proto:      channeler.ProtocolMagic,
	}
}

// MaxPayload is the largest payload this Egress can bundle into a single
// packet, given its configured PacketSize.
func (eg *Egress) MaxPayload() int {
	return eg.PacketSize - channeler.EnvelopeSize
}

// EnqueueMessage is the egress pipe's sole entry point: it encodes msg,
// queues it on id's channel, and immediately bundles whatever fits into
// one packet bound for recipient. There is no separate Consume method;
// every caller (handshake FSMs producing OutEvents, user writes) goes
// through here.
func (eg *Egress) EnqueueMessage(id channeler.ChannelID, recipient channeler.PeerID, msg channeler.Message) *channeler.Error {
	data := eg.Channels.Get(id)
	if data == nil {
		return channeler.NewError(channeler.ErrInvalidChannelID, "egress: channel %+v is not established", id)
	}

	encoded := msg.Encode(nil)
	if len(encoded) > eg.MaxPayload() {
		return channeler.NewError(channeler.ErrEncode, "message of %d bytes exceeds max payload %d", len(encoded), eg.MaxPayload())
	}

	data.AddOutgoingData(encoded)
	return eg.bundle(id, recipient, data)
}

// bundle drains data's outgoing queue in FIFO order, packing as many
// whole messages as fit under the payload budget into a single packet,
// and pushes the result onto data.Buffer. It is called once per
// EnqueueMessage; a still-nonempty queue after one bundle (because a
// single message didn't fit alongside what was already queued) is picked
// up by the next call, matching the original's stream-of-packets model
// rather than trying to drain everything in one shot.
func (eg *Egress) bundle(id channeler.ChannelID, recipient channeler.PeerID, data *channels.Data) *channeler.Error {
	budget := eg.MaxPayload()
	var payload []byte
	var taken []int64

	for {
		idx, ok := data.LowestPendingIndex()
		if !ok {
			break
		}
		msg, ok := data.PeekOutgoingData(idx)
		if !ok {
			break
		}
		if len(payload)+len(msg) > budget {
			break
		}
		payload = append(payload, msg...)
		taken = append(taken, idx)
		data.TakeOutgoingData(idx)
	}

	if len(payload) == 0 {
		return nil
	}

	pkt := channeler.Packet{
		Public: channeler.PublicHeader{
			Proto:      eg.Proto,
			Sender:     eg.Self,
			Recipient:  recipient,
			Channel:    id,
			PacketSize: uint16(eg.PacketSize),
		},
		Private: channeler.PrivateHeader{
			SequenceNo: data.NextSequenceNo(),
		},
		Payload: payload,
	}

	raw, err := channeler.EncodePacket(pkt)
	if err != nil {
		return err
	}

	slot := eg.Pool.Allocate()
	copy(slot.Bytes(), raw)

	data.Buffer.Push(buffer.Entry{Header: pkt.Public, Slot: slot})

	eg.Logger.WithFields(logrus.Fields{
		"channel":  id,
		"messages": len(taken),
		"bytes":    len(payload),
	}).Debug("bundled outgoing packet")

	return nil
}
