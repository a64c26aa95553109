package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress means the per-source run lock is held; overlapping
// runs of one source would race on dedup state.
var ErrRunInProgress = errors.New("run already in progress for source")

// ErrNoRecords is the empty-listing case, treated the same as an
// unreachable source: run-fatal.
var ErrNoRecords = errors.New("source returned no records")

// FetchError wraps an adapter failure. It is the only stage-level
// fatal error; everything downstream degrades to per-record failures.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type NormalizationKind string

const (
	KindMissingField NormalizationKind = "missing_field"
	KindInvalidDate  NormalizationKind = "invalid_date"
	KindInvalidVenue NormalizationKind = "invalid_venue"
)

// NormalizationError is record-scoped: the record is skipped and
// logged, the run continues.
type NormalizationError struct {
	Kind  NormalizationKind
	Field string
	Value string
}

func (e *NormalizationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("normalize: %s %s=%q", e.Kind, e.Field, e.Value)
	}
	return fmt.Sprintf("normalize: %s %s", e.Kind, e.Field)
}

// PersistenceError is record-scoped: one bad write never aborts the
// batch it arrived in.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
