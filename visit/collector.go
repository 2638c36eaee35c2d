package visit

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

/*
Collector is a prometheus.Collector exposing the visit statistics of a
Tracker. Every collection takes a new snapshot.
*/
type Collector struct {
	tracker         *Tracker
	nodeVisitsDesc  *prometheus.Desc
	nodeActiveDesc  *prometheus.Desc
	edgeVisitsDesc  *prometheus.Desc
	recordsDesc     *prometheus.Desc
	activeNodesDesc *prometheus.Desc
}

// NewCollector returns a Collector for the given tracker.
func NewCollector(t *Tracker) *Collector {
	return &Collector{
		tracker:         t,
		nodeVisitsDesc:  prometheus.NewDesc("flowtree_node_visits", "Recent visits to a tree node", []string{"node", "kind", "text"}, nil),
		nodeActiveDesc:  prometheus.NewDesc("flowtree_node_active", "Whether a tree node has been visited within the decay threshold", []string{"node", "kind", "text"}, nil),
		edgeVisitsDesc:  prometheus.NewDesc("flowtree_edge_visits", "Recent visits to a tree edge", []string{"parent", "child"}, nil),
		recordsDesc:     prometheus.NewDesc("flowtree_recorded_paths_total", "Paths recorded by the tracker", nil, nil),
		activeNodesDesc: prometheus.NewDesc("flowtree_active_nodes", "Number of active tree nodes", nil, nil),
	}
}

// Describe sends the descriptors of the collected metrics.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodeVisitsDesc
	ch <- c.nodeActiveDesc
	ch <- c.edgeVisitsDesc
	ch <- c.recordsDesc
	ch <- c.activeNodesDesc
}

// Collect sends the metrics of a new snapshot of the tracker.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.tracker.Snapshot()
	for _, ns := range s.Nodes {
		id := strconv.Itoa(int(ns.ID))
		ch <- prometheus.MustNewConstMetric(c.nodeVisitsDesc, prometheus.GaugeValue, float64(ns.Visits), id, ns.Kind, ns.Text)
		active := 0.0
		if ns.Active {
			active = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.nodeActiveDesc, prometheus.GaugeValue, active, id, ns.Kind, ns.Text)
	}
	for _, es := range s.Edges {
		ch <- prometheus.MustNewConstMetric(c.edgeVisitsDesc, prometheus.GaugeValue, float64(es.Visits), strconv.Itoa(int(es.Parent)), strconv.Itoa(int(es.Child)))
	}
	ch <- prometheus.MustNewConstMetric(c.recordsDesc, prometheus.CounterValue, float64(s.Records))
	activeNodes, _ := s.Active()
	ch <- prometheus.MustNewConstMetric(c.activeNodesDesc, prometheus.GaugeValue, float64(activeNodes))
}
