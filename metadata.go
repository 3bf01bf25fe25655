package docshift

import (
	"context"
	"time"

	"github.com/mongodb/docshift/db"
	"github.com/pkg/errors"
)

// RunMetadata records the outcome of one migration run. It is a
// report for operators; nothing reads it back to resume a run.
type RunMetadata struct {
	ID          string    `bson:"_id" json:"id" yaml:"id"`
	Source      string    `bson:"source" json:"source" yaml:"source"`
	Destination string    `bson:"destination" json:"destination" yaml:"destination"`
	Dispatched  int64     `bson:"dispatched" json:"dispatched" yaml:"dispatched"`
	Confirmed   int64     `bson:"confirmed" json:"confirmed" yaml:"confirmed"`
	Failed      int64     `bson:"failed" json:"failed" yaml:"failed"`
	Throttled   int64     `bson:"throttled" json:"throttled" yaml:"throttled"`
	Completed   bool      `bson:"completed" json:"completed" yaml:"completed"`
	HasErrors   bool      `bson:"has_errors" json:"has_errors" yaml:"has_errors"`
	StartedAt   time.Time `bson:"started_at" json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `bson:"finished_at" json:"finished_at" yaml:"finished_at"`
}

// Satisfied reports if the run read the whole source and every
// document reached the destination.
func (m *RunMetadata) Satisfied() bool { return m.Completed && !m.HasErrors }

// Metadata snapshots the stream's current state. A run that aborted,
// or that left documents in the ledger, has errors.
func (s *Stream) Metadata(source, dest db.Namespace) *RunMetadata {
	s.mu.RLock()
	state, startedAt, finishedAt := s.state, s.startedAt, s.finishedAt
	s.mu.RUnlock()

	return &RunMetadata{
		ID:          s.id,
		Source:      source.String(),
		Destination: dest.String(),
		Dispatched:  s.counters.Dispatched(),
		Confirmed:   s.counters.Confirmed(),
		Failed:      s.counters.Failed(),
		Throttled:   s.counters.Throttled(),
		Completed:   state == Done,
		HasErrors:   state == Aborted || s.ledger.Len() > 0,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}
}

// SaveRunMetadata upserts the record by run ID.
func SaveRunMetadata(ctx context.Context, u db.Upserter, m *RunMetadata) error {
	if m == nil || m.ID == "" {
		return errors.New("run metadata must have an id")
	}

	return errors.Wrapf(u.Upsert(ctx, m.ID, m), "problem saving metadata for run %s", m.ID)
}
