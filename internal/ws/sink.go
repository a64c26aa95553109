package ws

import (
	"encoding/json"
	"time"

	"gigwatch/internal/observability"
)

type runFinishedMessage struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
	Timestamp string `json:"timestamp"`
}

// Sink pushes terminal run events onto the hub so ops dashboards see
// scrape results as they land.
type Sink struct {
	hub *Hub
}

func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

func (s *Sink) RunStarted(observability.RunStartedEvent) {}

func (s *Sink) RunFinished(e observability.RunFinishedEvent) {
	if s == nil || s.hub == nil {
		return
	}
	msg := runFinishedMessage{
		Type:      "run_finished",
		RunID:     e.RunID.String(),
		Source:    e.SourceID,
		Status:    string(e.Status),
		Created:   e.Counts.Created,
		Updated:   e.Counts.Updated,
		Unchanged: e.Counts.Unchanged,
		Failed:    e.Counts.Failed,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.hub.Broadcast(b)
}

func (s *Sink) RecordFailed(observability.RecordFailedEvent) {}
