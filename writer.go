package docshift

import (
	"context"

	"github.com/mongodb/docshift/db"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Outcome is the terminal state of one document's insert.
type Outcome int

const (
	Confirmed Outcome = iota
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Writer inserts single documents, retrying throttled attempts after
// a jittered pause.
type Writer struct {
	dest        db.Destination
	classifier  Classifier
	reporter    Reporter
	jitter      Jitter
	maxAttempts int
}

// NewWriter builds a writer from validated options. Unset options take
// their defaults.
func NewWriter(dest db.Destination, opts Options) (*Writer, error) {
	if dest == nil {
		return nil, errors.New("destination must not be nil")
	}

	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return newWriter(dest, opts), nil
}

func newWriter(dest db.Destination, opts Options) *Writer {
	return &Writer{
		dest:        dest,
		classifier:  opts.Classifier,
		reporter:    opts.Reporter,
		jitter:      opts.jitter(),
		maxAttempts: opts.MaxAttempts,
	}
}

// Write makes up to the configured number of insert attempts. A
// document whose every attempt was throttled yields Failed with a nil
// error; any other failure is fatal and returned as an error.
func (w *Writer) Write(ctx context.Context, doc bson.Raw) (Outcome, error) {
	attempt := 0
	throttled := false

	err := retry.Do(ctx, w.jitter.limited(w.maxAttempts-1), func(ctx context.Context) error {
		attempt++
		err := w.dest.InsertOne(ctx, doc)
		if err == nil {
			throttled = false
			return nil
		}

		if !w.classifier.IsTransient(err) {
			throttled = false
			return errors.Wrapf(err, "problem inserting document (attempt %d of %d)", attempt, w.maxAttempts)
		}

		throttled = true
		w.reporter.Throttled(StageInsert, attempt, err)
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		w.reporter.Confirmed()
		return Confirmed, nil
	case throttled && ctx.Err() == nil:
		w.reporter.Failed(doc)
		return Failed, nil
	default:
		return Failed, err
	}
}
