package docshift

import (
	"context"

	"github.com/mongodb/docshift/db"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"
)

// Batch is the set of documents returned by one cursor advance.
type Batch []bson.Raw

// Dispatcher writes every document of a batch concurrently and waits
// for all of them before returning. Documents that exhaust their
// attempts go to the ledger; the first fatal error cancels the
// remaining writes and is returned.
type Dispatcher struct {
	writer      *Writer
	ledger      *Ledger
	counters    *Counters
	reporter    Reporter
	concurrency int
	runID       string
	batches     int
}

// NewDispatcher builds a dispatcher that records failures in ledger
// and tallies in counters.
func NewDispatcher(dest db.Destination, ledger *Ledger, counters *Counters, opts Options) (*Dispatcher, error) {
	if dest == nil {
		return nil, errors.New("destination must not be nil")
	}
	if ledger == nil {
		return nil, errors.New("ledger must not be nil")
	}
	if counters == nil {
		return nil, errors.New("counters must not be nil")
	}

	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return newDispatcher(dest, ledger, counters, opts, ""), nil
}

func newDispatcher(dest db.Destination, ledger *Ledger, counters *Counters, opts Options, runID string) *Dispatcher {
	reporter := countingReporter{counters: counters, Reporter: opts.Reporter}
	opts.Reporter = reporter

	return &Dispatcher{
		writer:      newWriter(dest, opts),
		ledger:      ledger,
		counters:    counters,
		reporter:    reporter,
		concurrency: opts.MaxConcurrency,
		runID:       runID,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch) error {
	if len(batch) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}

	for _, doc := range batch {
		g.Go(func() error {
			outcome, err := d.writer.Write(gctx, doc)
			if err != nil {
				return err
			}
			if outcome == Failed {
				return errors.Wrap(d.ledger.Add(doc), "problem recording failed document")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message":    "aborting batch",
			"run":        d.runID,
			"batch":      d.batches + 1,
			"batch_size": len(batch),
		}))
		return err
	}

	d.batches++
	total := d.counters.addDispatched(len(batch))
	d.reporter.BatchDispatched(Progress{
		RunID:     d.runID,
		Batch:     d.batches,
		BatchSize: len(batch),
		Total:     total,
	})

	return nil
}
