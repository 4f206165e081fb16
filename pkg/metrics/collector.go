/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package metrics exposes protocol-runtime occupancy as Prometheus
// gauges: packet pool usage, pending/established channel counts, and the
// number of live timeouts, per connection.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chanmux/channeler/pkg/channels"
	"github.com/chanmux/channeler/pkg/pool"
	"github.com/chanmux/channeler/pkg/timeouts"
)

// Subject is whatever a connection exposes for collection: its packet
// pool, channel set, and timeouts collection. A host fills it from a
// *conn.Node's Pool and a *conn.Connection's Channels and Timeouts
// fields; since it is a plain struct, it can also be pointed at a bare
// pool.Pool/channels.Set/timeouts.Collection in tests.
type Subject struct {
	Pool     *pool.Pool
	Channels *channels.Set
	Timeouts *timeouts.Collection
}

type gauge struct {
	description *prometheus.Desc
	supplier    func(s Subject) float64
}

// Collector is a prometheus.Collector over a dynamic set of connections,
// each registered under its own label values. Shaped after the teacher's
// TCPInfoCollector: a guarded map of subjects plus a fixed list of
// description/supplier pairs walked on every Collect call.
type Collector struct {
	mu       sync.Mutex
	subjects map[string]labeledSubject
	gauges   []gauge
}

type labeledSubject struct {
	subject Subject
	labels  []string
}

// NewCollector constructs a Collector. labelNames are the per-connection
// label names (e.g. "peer"); constLabels are fixed across the whole
// process (e.g. "hostname").
func NewCollector(prefix string, labelNames []string, constLabels prometheus.Labels) *Collector {
	c := &Collector{
		subjects: make(map[string]labeledSubject),
	}
	c.addGauges(prefix, labelNames, constLabels)
	return c
}

func (c *Collector) addGauges(prefix string, labelNames []string, constLabels prometheus.Labels) {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_"+name, help, labelNames, constLabels)
	}

	c.gauges = []gauge{
		{
			description: desc("pool_slots_allocated", "Packet pool slots currently allocated."),
			supplier:    func(s Subject) float64 { return float64(s.Pool.Size()) },
		},
		{
			description: desc("pool_slots_capacity", "Total packet pool slots across all blocks."),
			supplier:    func(s Subject) float64 { return float64(s.Pool.Capacity()) },
		},
		{
			description: desc("channels_pending", "Handshakes currently in flight."),
			supplier:    func(s Subject) float64 { return float64(s.Channels.PendingCount()) },
		},
		{
			description: desc("channels_established", "Channels currently established, including the default channel."),
			supplier:    func(s Subject) float64 { return float64(s.Channels.EstablishedCount()) },
		},
		{
			description: desc("timeouts_pending", "Timeouts currently armed."),
			supplier:    func(s Subject) float64 { return float64(s.Timeouts.Len()) },
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		descs <- g.description
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(out chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.subjects {
		for _, g := range c.gauges {
			out <- prometheus.MustNewConstMetric(g.description, prometheus.GaugeValue, g.supplier(entry.subject), entry.labels...)
		}
	}
}

// Add registers a connection's subject for collection under key, with
// per-connection label values matching the Collector's labelNames.
func (c *Collector) Add(key string, subject Subject, labels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subjects[key] = labeledSubject{subject: subject, labels: labels}
}

// Remove stops collecting key, e.g. once its connection is closed.
func (c *Collector) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subjects, key)
}
