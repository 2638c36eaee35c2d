package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of classifying a record, as labelled on Metrics.Records.
const (
	OutcomePartial = "partial"
	OutcomeInvalid = "invalid"
)

/*
Metrics holds the counters updated while ingesting records.
*/
type Metrics struct {
	Files             prometheus.Counter
	Batches           *prometheus.CounterVec
	Records           *prometheus.CounterVec
	DroppedHighlights prometheus.Counter
}

/*
NewMetrics returns the ingestion counters, registered on the given
registerer unless it is nil.
*/
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowtree_ingested_files_total",
			Help: "Record files read from the watched directory",
		}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtree_batches_total",
			Help: "Record batches processed by workers, by result",
		}, []string{"result"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtree_classified_records_total",
			Help: "Records classified, by reached class or outcome",
		}, []string{"outcome"}),
		DroppedHighlights: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowtree_dropped_highlights_total",
			Help: "Highlight events dropped because the renderer was behind",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Files, m.Batches, m.Records, m.DroppedHighlights} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) fileRead() {
	if m != nil {
		m.Files.Inc()
	}
}

func (m *Metrics) batch(result string) {
	if m != nil {
		m.Batches.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) record(outcome string) {
	if m != nil {
		m.Records.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) highlightDropped() {
	if m != nil {
		m.DroppedHighlights.Inc()
	}
}
