/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package pipe implements the ordered receive- and send-side processing
// stages that sit between the wire and the FSMs: de-envelope, route,
// validate, and channel-assign a raw buffer into per-message state-handling
// dispatch on ingress; enqueue, bundle, checksum, and buffer outgoing
// messages into packets on egress.
package pipe

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
	"github.com/chanmux/channeler/pkg/fsm"
)

// PeerPolicy decides whether a peer id should be banned from further
// traffic in the given direction. A nil policy never bans anyone.
type PeerPolicy interface {
	ShouldFilter(id channeler.PeerID, ingress bool) bool
}

// Ingress runs a raw received buffer through the receive-side pipeline:
// de-envelope (parse the public header), route (drop banned peers),
// validate (checksum), channel-assign (drop packets for unknown,
// non-pending channels), message-parse, and state-handling (dispatch each
// message through the FSM registry).
type Ingress struct {
	Channels *channels.Set
	Registry *fsm.Registry
	Peer     PeerPolicy
	Logger   *logrus.Entry

	senderBan    map[channeler.PeerID]struct{}
	recipientBan map[channeler.PeerID]struct{}
}

// NewIngress constructs an Ingress pipeline over cs and reg. A nil logger
// installs a discarding one.
func NewIngress(cs *channels.Set, reg *fsm.Registry, logger *logrus.Entry) *Ingress {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = logrus.NewEntry(discard)
	}
	return &Ingress{
		Channels:     cs,
		Registry:     reg,
		Logger:       logger,
		senderBan:    make(map[channeler.PeerID]struct{}),
		recipientBan: make(map[channeler.PeerID]struct{}),
	}
}

// Process runs raw through every ingress stage in order, returning the
// actions and out-events the FSMs produced. A dropped packet (banned peer,
// bad checksum, unknown channel) reports a nil error and empty results:
// only a malformed buffer that couldn't even be parsed is an error.
func (in *Ingress) Process(raw []byte) ([]fsm.Action, []fsm.OutEvent, *channeler.Error) {
	header, err := deEnvelope(raw)
	if err != nil {
		return nil, nil, err
	}

	if !in.route(header) {
		in.Logger.WithFields(logrus.Fields{
			"sender":    header.Sender.String(),
			"recipient": header.Recipient.String(),
		}).Debug("dropping packet from filtered peer")
		return nil, nil, nil
	}

	pkt, err := channeler.DecodePacket(raw)
	if err != nil {
		return nil, nil, err
	}

	if !in.validate(pkt) {
		in.ban(header.Sender, header.Recipient)
		in.Logger.WithField("sender", header.Sender.String()).Warn("dropping packet with invalid checksum")
		return nil, nil, nil
	}

	channelID, ok := in.channelAssign(pkt)
	if !ok {
		in.Logger.WithField("channel", pkt.Public.Channel).Debug("dropping packet for unknown channel")
		return nil, nil, nil
	}

	return in.stateHandling(header, channelID, pkt)
}

// deEnvelope parses only the public header, the minimum needed to decide
// whether a buffer is even worth fully decoding.
func deEnvelope(raw []byte) (channeler.PublicHeader, *channeler.Error) {
	return channeler.DecodePacketHeader(raw)
}

// route reports whether the packet should continue through the pipe: both
// the sender and the recipient must be currently unbanned.
func (in *Ingress) route(header channeler.PublicHeader) bool {
	return !in.isBanned(header.Sender, true) && !in.isBanned(header.Recipient, false)
}

// validate checks the packet's footer checksum.
func (in *Ingress) validate(pkt channeler.Packet) bool {
	return channeler.VerifyChecksum(pkt)
}

// channelAssign maps the packet to a known channel. The default channel is
// always accepted (and implicitly added if this is the first sighting of
// it); any other channel must already be pending or established, since a
// known channel can only be the result of a local EstablishChannel call
// or an incoming handshake, never unsolicited traffic.
func (in *Ingress) channelAssign(pkt channeler.Packet) (channeler.ChannelID, bool) {
	id := pkt.Public.Channel
	if id.IsDefault() {
		in.Channels.Add(id)
		return id, true
	}
	return id, in.Channels.HasChannel(id)
}

// stateHandling parses the packet's messages and dispatches each one
// through the FSM registry, accumulating every action and out-event
// produced along the way.
func (in *Ingress) stateHandling(header channeler.PublicHeader, channelID channeler.ChannelID, pkt channeler.Packet) ([]fsm.Action, []fsm.OutEvent, *channeler.Error) {
	messages := channeler.NewMessages(pkt.Payload).All()

	var actions []fsm.Action
	var outEvents []fsm.OutEvent
	for _, msg := range messages {
		ev := fsm.NewMessageEvent(header.Sender, header.Recipient, channelID, msg)
		a, o, handled := in.Registry.Dispatch(ev)
		if !handled {
			in.Logger.WithField("type", msg.Type).Debug("no FSM claimed message")
		}
		actions = append(actions, a...)
		outEvents = append(outEvents, o...)
	}
	return actions, outEvents, nil
}

func (in *Ingress) isBanned(id channeler.PeerID, ingress bool) bool {
	banlist := in.recipientBan
	if ingress {
		banlist = in.senderBan
	}
	if _, ok := banlist[id]; ok {
		return true
	}
	if in.Peer != nil && in.Peer.ShouldFilter(id, ingress) {
		banlist[id] = struct{}{}
		return true
	}
	return false
}

func (in *Ingress) ban(sender, recipient channeler.PeerID) {
	if in.Peer == nil {
		return
	}
	if in.Peer.ShouldFilter(sender, true) {
		in.senderBan[sender] = struct{}{}
	}
	if in.Peer.ShouldFilter(recipient, false) {
		in.recipientBan[recipient] = struct{}{}
	}
}
