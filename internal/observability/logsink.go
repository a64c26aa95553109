package observability

import "log"

type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) RunStarted(e RunStartedEvent) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf("run=%s source=%s status=started", e.RunID, e.SourceID)
}

func (s *LogSink) RunFinished(e RunFinishedEvent) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(
		"run=%s source=%s status=%s scraped=%d created=%d updated=%d unchanged=%d skipped=%d failed=%d duration=%s err=%q",
		e.RunID, e.SourceID, e.Status,
		e.Counts.Scraped, e.Counts.Created, e.Counts.Updated, e.Counts.Unchanged, e.Counts.Skipped, e.Counts.Failed,
		e.Duration, e.Error,
	)
}

func (s *LogSink) RecordFailed(e RecordFailedEvent) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf("run=%s source=%s stage=%s key=%s record_failed=%q", e.RunID, e.SourceID, e.Stage, e.Key, e.Message)
}
