package run

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
)

type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

type Counts struct {
	Scraped   int `json:"scraped"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type ScraperRun struct {
	ID         uuid.UUID  `json:"id"`
	SourceID   string     `json:"source_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     Status     `json:"status"`
	Counts     Counts     `json:"counts"`
	Error      string     `json:"error,omitempty"`
}

// ErrorLogEntry is append-only. Payload holds a JSON snapshot of the
// raw record for postmortems; it is never interpreted by the pipeline.
type ErrorLogEntry struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	SourceID  string    `json:"source_id"`
	Stage     Stage     `json:"stage"`
	RecordKey string    `json:"record_key,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
