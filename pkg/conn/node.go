/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package conn is the connection API: it wires the channel set, timeouts,
// FSM registry, and ingress/egress pipes into the handful of operations a
// host needs (EstablishChannel, ChannelWrite, ChannelRead, ReceivedPacket,
// PacketToSend, Allocate), matching the shape of the internal API the core
// protocol logic is built to support.
package conn

import (
	"github.com/sirupsen/logrus"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/pool"
)

// DefaultPoolBlockSize is the number of packet-sized slots grown per pool
// block when a Node doesn't specify one.
const DefaultPoolBlockSize = 64

// Node holds everything shared across every connection to a single local
// peer identity: the packet pool, the packet size all connections encode
// to, and the secret generator FSMs use for cookies. It is instantiated
// once per node, not once per connection.
type Node struct {
	Self            channeler.PeerID
	PacketSize      int
	Pool            *pool.Pool
	SecretGenerator func() []byte
	Logger          *logrus.Entry
}

type nodeConfig struct {
	poolBlockSize int
	logger        *logrus.Entry
}

// NodeOption configures optional Node construction parameters.
type NodeOption func(*nodeConfig)

// WithPoolBlockSize overrides the number of slots grown per pool block.
func WithPoolBlockSize(n int) NodeOption {
	return func(c *nodeConfig) { c.poolBlockSize = n }
}

// WithNodeLogger installs a logger new connections inherit by default.
func WithNodeLogger(logger *logrus.Entry) NodeOption {
	return func(c *nodeConfig) { c.logger = logger }
}

// NewNode constructs a Node for self, encoding packets of packetSize bytes
// and drawing cookie/handshake secrets from secretGen.
func NewNode(self channeler.PeerID, packetSize int, secretGen func() []byte, opts ...NodeOption) *Node {
	cfg := nodeConfig{poolBlockSize: DefaultPoolBlockSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Node{
		Self:            self,
		PacketSize:      packetSize,
		Pool:            pool.New(cfg.poolBlockSize, packetSize, nil),
		SecretGenerator: secretGen,
		Logger:          logger,
	}
}
