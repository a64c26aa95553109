package observability

import (
	"time"

	"gigwatch/internal/domain/run"

	"github.com/google/uuid"
)

type RunStartedEvent struct {
	RunID    uuid.UUID `json:"run_id"`
	SourceID string    `json:"source_id"`
	At       time.Time `json:"at"`
}

type RunFinishedEvent struct {
	RunID    uuid.UUID     `json:"run_id"`
	SourceID string        `json:"source_id"`
	Status   run.Status    `json:"status"`
	Counts   run.Counts    `json:"counts"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type RecordFailedEvent struct {
	RunID    uuid.UUID `json:"run_id"`
	SourceID string    `json:"source_id"`
	Stage    run.Stage `json:"stage"`
	Key      string    `json:"key,omitempty"`
	Message  string    `json:"message"`
}

// Sink receives run status transitions and per-record failures. The
// pipeline emits; sinks decide format and transport.
type Sink interface {
	RunStarted(e RunStartedEvent)
	RunFinished(e RunFinishedEvent)
	RecordFailed(e RecordFailedEvent)
}

type NopSink struct{}

func (NopSink) RunStarted(RunStartedEvent)   {}
func (NopSink) RunFinished(RunFinishedEvent) {}
func (NopSink) RecordFailed(RecordFailedEvent) {}

// MultiSink fans out to every configured sink.
type MultiSink []Sink

func (m MultiSink) RunStarted(e RunStartedEvent) {
	for _, s := range m {
		if s != nil {
			s.RunStarted(e)
		}
	}
}

func (m MultiSink) RunFinished(e RunFinishedEvent) {
	for _, s := range m {
		if s != nil {
			s.RunFinished(e)
		}
	}
}

func (m MultiSink) RecordFailed(e RecordFailedEvent) {
	for _, s := range m {
		if s != nil {
			s.RecordFailed(e)
		}
	}
}
