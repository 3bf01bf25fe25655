package docshift

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mongodb/docshift/db"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
)

// State is the lifecycle position of a Stream.
type State int

const (
	Idle State = iota
	Fetching
	ThrottledWait
	Dispatching
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case ThrottledWait:
		return "throttled-wait"
	case Dispatching:
		return "dispatching"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stream drives a migration: it reads the whole source collection in
// batches and hands each one to a Dispatcher, strictly one batch at a
// time.
type Stream struct {
	id         string
	source     db.Source
	dispatcher *Dispatcher
	ledger     *Ledger
	counters   *Counters
	opts       Options

	state      State
	startedAt  time.Time
	finishedAt time.Time
	mu         sync.RWMutex
}

// NewStream builds a stream over a source and destination. Every run
// gets a fresh ledger and counters owned by the stream.
func NewStream(source db.Source, dest db.Destination, opts Options) (*Stream, error) {
	if source == nil {
		return nil, errors.New("source must not be nil")
	}
	if dest == nil {
		return nil, errors.New("destination must not be nil")
	}

	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Stream{
		id:       uuid.New().String(),
		source:   source,
		ledger:   NewLedger(),
		counters: &Counters{},
		opts:     opts,
	}
	s.dispatcher = newDispatcher(dest, s.ledger, s.counters, opts, s.id)

	return s, nil
}

func (s *Stream) ID() string           { return s.id }
func (s *Stream) Counters() *Counters  { return s.counters }
func (s *Stream) Ledger() *Ledger      { return s.ledger }
func (s *Stream) Options() Options     { return s.opts }
func (s *Stream) setState(state State) { s.mu.Lock(); s.state = state; s.mu.Unlock() }

func (s *Stream) finish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	s.finishedAt = time.Now()
}

func (s *Stream) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Run migrates the entire source collection. The ledger is returned
// even when the run aborts, so the failures recorded before a fatal
// error can still be delivered. A stream runs at most once.
func (s *Stream) Run(ctx context.Context) (*Ledger, error) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return s.ledger, errors.Errorf("migration %s has already run", s.id)
	}
	s.state = Fetching
	s.startedAt = time.Now()
	s.mu.Unlock()

	grip.Info(message.Fields{
		"message":        "starting migration",
		"run":            s.id,
		"batch_size":     s.opts.BatchSize,
		"max_attempts":   s.opts.MaxAttempts,
		"min_wait":       s.opts.MinWait.String(),
		"max_wait":       s.opts.MaxWait.String(),
		"max_concurrent": s.opts.MaxConcurrency,
	})

	if err := s.run(ctx); err != nil {
		s.finish(Aborted)
		grip.Error(message.WrapError(err, message.Fields{
			"message":  "migration aborted",
			"run":      s.id,
			"counters": s.counters.Fields(),
		}))
		return s.ledger, err
	}

	s.finish(Done)
	grip.Info(message.Fields{
		"message":  "migration complete",
		"run":      s.id,
		"counters": s.counters.Fields(),
	})

	return s.ledger, nil
}

func (s *Stream) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "migration canceled")
	}

	var cursor db.Cursor
	err := s.fetch(ctx, "opening source cursor", func(ctx context.Context) error {
		var err error
		cursor, err = s.source.Find(ctx, db.FindOptions{
			BatchSize:       int32(s.opts.BatchSize),
			NoCursorTimeout: true,
		})
		return err
	})
	if err != nil {
		return err
	}

	defer func() {
		// the cursor belongs to the server session, which outlives a
		// canceled run context.
		grip.Warning(message.WrapError(cursor.Close(context.WithoutCancel(ctx)), message.Fields{
			"message": "problem closing source cursor",
			"run":     s.id,
		}))
	}()

	for {
		var (
			batch Batch
			more  bool
		)

		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "migration canceled")
		}

		s.setState(Fetching)
		err := s.fetch(ctx, "advancing source cursor", func(ctx context.Context) error {
			var err error
			batch, more, err = cursor.NextBatch(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}

		s.setState(Dispatching)
		if err = s.dispatcher.Dispatch(ctx, batch); err != nil {
			return err
		}
	}
}

// fetch runs a source operation, pausing and retrying while the
// source throttles. Without a MaxFetchRetries cap this retries for as
// long as the source keeps throttling; only a fatal error or context
// cancellation ends it.
func (s *Stream) fetch(ctx context.Context, op string, fn retry.RetryFunc) error {
	b := s.opts.jitter().backoff()
	if s.opts.MaxFetchRetries > 0 {
		b = s.opts.jitter().limited(s.opts.MaxFetchRetries)
	}

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		s.setState(Fetching)
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !s.opts.Classifier.IsTransient(err) {
			return err
		}

		s.dispatcher.reporter.Throttled(StageFetch, attempt, err)
		s.setState(ThrottledWait)
		return retry.RetryableError(err)
	})

	return errors.Wrapf(err, "problem %s (attempt %d)", op, attempt)
}
