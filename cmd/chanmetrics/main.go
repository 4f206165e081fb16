/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// chanmetrics serves channeler connection occupancy as Prometheus
// metrics: it exposes pool/channel/timeout gauges for a single
// placeholder connection. It opens no transport and accepts no channel
// establishments.
package main

import (
	"crypto/rand"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/chanmux/channeler"
	"github.com/chanmux/channeler/pkg/conn"
	"github.com/chanmux/channeler/pkg/metrics"
)

const packetSize = 1400

func randomSecret() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}

func main() {
	hostname, err := os.Hostname()
	if err != nil {
		logrus.Fatalf("hostname: %v", err)
	}

	self, perr := channeler.NewRandomPeerID()
	if perr != nil {
		logrus.Fatalf("generating local peer id: %v", perr)
	}
	node := conn.NewNode(self, packetSize, randomSecret)

	collector := metrics.NewCollector("chanmux", []string{"peer"}, prometheus.Labels{
		"hostname": hostname,
	})

	// A real host would register one Connection per remote peer as it
	// accepts handshakes; here we track the node's own pool alongside a
	// single placeholder connection so /metrics has something to report
	// from process start.
	placeholder := conn.NewConnection(node, self)
	collector.Add(placeholder.ID.String(), metrics.Subject{
		Pool:     node.Pool,
		Channels: placeholder.Channels,
		Timeouts: placeholder.Timeouts,
	}, []string{self.String()})

	prometheus.MustRegister(collector)

	http.Handle("/metrics", promhttp.Handler())
	logrus.Info("serving metrics on :18080/metrics")
	if err := http.ListenAndServe(":18080", nil); err != nil {
		logrus.Fatalf("listen: %v", err)
	}
}
