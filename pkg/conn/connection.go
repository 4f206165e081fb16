/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package conn

import (
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/channels"
	"github.com/chanmux/channeler/pkg/fsm"
	"github.com/chanmux/channeler/pkg/pipe"
	"github.com/chanmux/channeler/pkg/timeouts"
)

// ChannelEstablishedFunc is invoked once a channel completes its
// handshake, on either the initiating or the responding side.
type ChannelEstablishedFunc func(id channeler.ChannelID)

// DataAvailableFunc is invoked whenever application data arrives on an
// established channel, after it has been queued for ChannelRead.
type DataAvailableFunc func(id channeler.ChannelID, length int)

type connConfig struct {
	channelNewTimeout time.Duration
	channelTimeout    time.Duration
	writeChunking     bool
	sleep             timeouts.SleepFunc
	logger            *logrus.Entry
	peerPolicy        pipe.PeerPolicy
	onEstablished     ChannelEstablishedFunc
	onDataAvailable   DataAvailableFunc
}

// ConnectionOption configures optional Connection construction parameters.
type ConnectionOption func(*connConfig)

// WithWriteChunking selects whether ChannelWrite fragments payloads larger
// than the per-packet data budget into multiple MSG_DATA messages
// (enabled, the default) or rejects them outright with ErrWrite
// (disabled), for hosts that need strict one-message-per-packet
// semantics.
func WithWriteChunking(enabled bool) ConnectionOption {
	return func(c *connConfig) { c.writeChunking = enabled }
}

// WithChannelNewTimeout overrides how long a CHANNEL_NEW handshake is
// given to complete.
func WithChannelNewTimeout(d time.Duration) ConnectionOption {
	return func(c *connConfig) { c.channelNewTimeout = d }
}

// WithChannelTimeout overrides how long after establishment the initiator
// gives up on a channel. Traffic on the channel does not reset the timer.
func WithChannelTimeout(d time.Duration) ConnectionOption {
	return func(c *connConfig) { c.channelTimeout = d }
}

// WithSleepFunc overrides the timeouts collection's sleep function,
// primarily for tests that want deterministic, instantaneous timeouts.
func WithSleepFunc(f timeouts.SleepFunc) ConnectionOption {
	return func(c *connConfig) { c.sleep = f }
}

// WithConnectionLogger overrides the logger this connection's pipes and
// FSMs log through, instead of inheriting the Node's.
func WithConnectionLogger(logger *logrus.Entry) ConnectionOption {
	return func(c *connConfig) { c.logger = logger }
}

// WithPeerPolicy installs the ban-list policy the ingress pipe consults
// for both sender and recipient ids.
func WithPeerPolicy(p pipe.PeerPolicy) ConnectionOption {
	return func(c *connConfig) { c.peerPolicy = p }
}

// WithChannelEstablishedFunc installs the callback invoked when a channel
// completes its handshake.
func WithChannelEstablishedFunc(f ChannelEstablishedFunc) ConnectionOption {
	return func(c *connConfig) { c.onEstablished = f }
}

// WithDataAvailableFunc installs the callback invoked when application
// data becomes available for ChannelRead.
func WithDataAvailableFunc(f DataAvailableFunc) ConnectionOption {
	return func(c *connConfig) { c.onDataAvailable = f }
}

// Connection is instantiated once per remote peer. It is not internally
// synchronized: a host driving one Connection from multiple goroutines
// must serialize its own calls into it.
type Connection struct {
	Node *Node
	Peer channeler.PeerID
	ID   xid.ID

	Channels  *channels.Set
	Timeouts  *timeouts.Collection
	Registry  *fsm.Registry
	Initiator *fsm.Initiator
	Responder *fsm.Responder
	Data      *fsm.Data
	Ingress   *pipe.Ingress
	Egress    *pipe.Egress

	Logger *logrus.Entry

	writeChunking   bool
	onEstablished   ChannelEstablishedFunc
	onDataAvailable DataAvailableFunc
	incoming        map[channeler.ChannelID][][]byte
}

// NewConnection constructs a Connection to peer, sharing node's packet
// pool, packet size and secret generator.
func NewConnection(node *Node, peer channeler.PeerID, opts ...ConnectionOption) *Connection {
	cfg := connConfig{
		channelNewTimeout: fsm.DefaultChannelNewTimeout,
		channelTimeout:    fsm.DefaultChannelTimeout,
		writeChunking:     true,
		sleep:             time.Sleep,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = node.Logger
	}
	id := xid.New()
	logger = logger.WithFields(logrus.Fields{"conn_id": id.String(), "peer": peer.String()})

	cs := channels.NewSet()
	// The default channel carries handshake traffic before any other
	// channel exists, so it must be established up front rather than
	// waiting for the first packet to arrive or be sent.
	_ = cs.Add(channeler.DefaultChannelID)

	to := timeouts.New(cfg.sleep)

	initiator := fsm.NewInitiator(node.Self, cs, to, node.SecretGenerator)
	initiator.ChannelNewTimeout = cfg.channelNewTimeout
	initiator.ChannelTimeout = cfg.channelTimeout
	responder := fsm.NewResponder(node.Self, cs, node.SecretGenerator)
	data := fsm.NewData(cs)

	registry := fsm.NewRegistry()
	registry.Register(initiator)
	registry.Register(responder)
	registry.Register(data)

	ingress := pipe.NewIngress(cs, registry, logger)
	ingress.Peer = cfg.peerPolicy
	egress := pipe.NewEgress(node.Self, cs, node.Pool, node.PacketSize, logger)

	return &Connection{
		Node:            node,
		Peer:            peer,
		ID:              id,
		Channels:        cs,
		Timeouts:        to,
		Registry:        registry,
		Initiator:       initiator,
		Responder:       responder,
		Data:            data,
		Ingress:         ingress,
		Egress:          egress,
		Logger:          logger,
		writeChunking:   cfg.writeChunking,
		onEstablished:   cfg.onEstablished,
		onDataAvailable: cfg.onDataAvailable,
		incoming:        make(map[channeler.ChannelID][][]byte),
	}
}

// dispatchOutEvent forwards an FSM-produced OutEvent to the egress pipe.
// Handshake messages (CHANNEL_NEW/ACKNOWLEDGE/FINALIZE/COOKIE) always
// travel on the default channel at the packet level: the handshake's own
// channel id lives inside the message payload, not the envelope, since no
// per-channel routing exists for a channel that isn't established yet.
// Only MSG_DATA, sent once a channel is established, uses its own
// channel id at the packet level.
func (c *Connection) dispatchOutEvent(oe fsm.OutEvent) *channeler.Error {
	channelID := oe.Channel
	switch oe.Message.Type {
	case channeler.MsgChannelNew, channeler.MsgChannelAcknowledge, channeler.MsgChannelFinalize, channeler.MsgChannelCookie:
		channelID = channeler.DefaultChannelID
	}
	return c.Egress.EnqueueMessage(channelID, c.Peer, oe.Message)
}
