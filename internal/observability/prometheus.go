package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes run outcomes as prometheus counters. Register its
// collectors on whatever registry the ops server serves.
type PromSink struct {
	runsTotal     *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
}

func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gigwatch",
			Name:      "scraper_runs_total",
			Help:      "Scraper runs by source and terminal status.",
		}, []string{"source", "status"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gigwatch",
			Name:      "scraper_records_total",
			Help:      "Records processed by source and dedup action.",
		}, []string{"source", "action"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gigwatch",
			Name:      "scraper_record_failures_total",
			Help:      "Per-record failures by source and stage.",
		}, []string{"source", "stage"}),
	}
	if reg != nil {
		reg.MustRegister(s.runsTotal, s.recordsTotal, s.failuresTotal)
	}
	return s
}

func (s *PromSink) RunStarted(RunStartedEvent) {}

func (s *PromSink) RunFinished(e RunFinishedEvent) {
	if s == nil {
		return
	}
	s.runsTotal.WithLabelValues(e.SourceID, string(e.Status)).Inc()
	s.recordsTotal.WithLabelValues(e.SourceID, "created").Add(float64(e.Counts.Created))
	s.recordsTotal.WithLabelValues(e.SourceID, "updated").Add(float64(e.Counts.Updated))
	s.recordsTotal.WithLabelValues(e.SourceID, "unchanged").Add(float64(e.Counts.Unchanged))
	s.recordsTotal.WithLabelValues(e.SourceID, "skipped").Add(float64(e.Counts.Skipped))
}

func (s *PromSink) RecordFailed(e RecordFailedEvent) {
	if s == nil {
		return
	}
	s.failuresTotal.WithLabelValues(e.SourceID, string(e.Stage)).Inc()
}
