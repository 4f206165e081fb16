/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// chanpeer demonstrates two channeler peers exchanging a handshake and an
// application message over an in-memory net.Pipe transport: no real
// sockets, just the protocol runtime driving a pair of Connections.
//
// Each Connection is owned by exactly one goroutine (peerA/peerB below);
// a Connection is not safe for concurrent use, so everything it does -
// sending, receiving, and the one-shot EstablishChannel/ChannelWrite
// calls - happens on that single goroutine.
package main

import (
	"crypto/rand"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/conn"
)

const packetSize = 512

func randomSecret() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}

func readFull(r net.Conn, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return err
		}
	}
	return nil
}

// drain writes every packet currently queued on id to transport.
func drain(c *conn.Connection, transport net.Conn, id channeler.ChannelID) error {
	for {
		entry, ok := c.PacketToSend(id)
		if !ok {
			return nil
		}
		_, err := transport.Write(entry.Slot.Bytes())
		entry.Slot.Release()
		if err != nil {
			return err
		}
	}
}

// peerA owns connA: it initiates a channel, waits for it to establish,
// sends one application message, and exits once it has drained every
// reply the handshake produced.
func peerA(c *conn.Connection, transport net.Conn, established <-chan channeler.ChannelID, message []byte, done chan<- error) {
	id, err := c.EstablishChannel()
	if err != nil {
		done <- err
		return
	}
	c.Logger.WithField("channel", id).Info("handshake initiated")
	if err := drain(c, transport, channeler.DefaultChannelID); err != nil {
		done <- err
		return
	}

	var full channeler.ChannelID
	for {
		got := false
		select {
		case full = <-established:
			got = true
		default:
		}
		if got {
			break
		}

		buf := make([]byte, packetSize)
		if err := readFull(transport, buf); err != nil {
			done <- err
			return
		}
		slot := c.Allocate()
		copy(slot.Bytes(), buf)
		recvErr := c.ReceivedPacket(slot)
		slot.Release()
		if recvErr != nil {
			c.Logger.WithError(recvErr).Warn("dropping unprocessable packet")
		}
		if err := drain(c, transport, channeler.DefaultChannelID); err != nil {
			done <- err
			return
		}
	}

	if _, err := c.ChannelWrite(full, message); err != nil {
		done <- err
		return
	}
	done <- drain(c, transport, full)
}

// peerB owns connB: it answers handshake traffic as it arrives and
// reports the first application payload it receives.
func peerB(c *conn.Connection, transport net.Conn, done chan<- error) {
	for {
		buf := make([]byte, packetSize)
		if err := readFull(transport, buf); err != nil {
			done <- err
			return
		}
		slot := c.Allocate()
		copy(slot.Bytes(), buf)
		recvErr := c.ReceivedPacket(slot)
		slot.Release()
		if recvErr != nil {
			c.Logger.WithError(recvErr).Warn("dropping unprocessable packet")
		}
		if err := drain(c, transport, channeler.DefaultChannelID); err != nil {
			done <- err
			return
		}
	}
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	selfA, _ := channeler.NewRandomPeerID()
	selfB, _ := channeler.NewRandomPeerID()

	nodeA := conn.NewNode(selfA, packetSize, randomSecret, conn.WithNodeLogger(logrus.WithField("node", "a")))
	nodeB := conn.NewNode(selfB, packetSize, randomSecret, conn.WithNodeLogger(logrus.WithField("node", "b")))

	established := make(chan channeler.ChannelID, 1)
	received := make(chan []byte, 1)

	connA := conn.NewConnection(nodeA, selfB,
		conn.WithChannelEstablishedFunc(func(id channeler.ChannelID) { established <- id }),
	)
	var connB *conn.Connection
	connB = conn.NewConnection(nodeB, selfA,
		conn.WithDataAvailableFunc(func(id channeler.ChannelID, length int) {
			if data, ok := connB.ChannelRead(id); ok {
				received <- data
			}
		}),
	)

	pipeA, pipeB := net.Pipe()
	defer pipeA.Close()
	defer pipeB.Close()

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)

	go peerB(connB, pipeB, doneB)
	go peerA(connA, pipeA, established, []byte("hello from peer a"), doneA)

	select {
	case data := <-received:
		logrus.WithField("payload", string(data)).Info("peer b received application data")
	case err := <-doneA:
		logrus.Fatalf("peer a exited before delivering data: %v", err)
	case <-time.After(2 * time.Second):
		logrus.Fatal("data did not arrive")
	}
}
