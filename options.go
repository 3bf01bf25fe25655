package docshift

import (
	"math"
	"time"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 10
	DefaultMinWait     = 1500 * time.Millisecond
	DefaultMaxWait     = 3000 * time.Millisecond
)

// Options tune a migration run. The zero value of every field other
// than the wait bounds means "use the default".
type Options struct {
	// BatchSize is the number of documents fetched per cursor
	// advance and written concurrently per batch.
	BatchSize int

	// MaxAttempts bounds the insert attempts for one document.
	MaxAttempts int

	// MinWait and MaxWait bound the randomized pause after a
	// throttled insert or fetch. Leaving both at zero selects
	// DefaultMinWait and DefaultMaxWait; there is no way to disable
	// the pause.
	MinWait time.Duration
	MaxWait time.Duration

	// MaxFetchRetries caps consecutive throttled cursor advances.
	// Zero retries for as long as the source keeps throttling.
	MaxFetchRetries int

	// MaxConcurrency caps in-flight inserts within a batch. Zero
	// allows one per document.
	MaxConcurrency int

	// Classifier decides which errors are throttling. Defaults to
	// DefaultClassifier().
	Classifier Classifier

	// Reporter observes progress. Defaults to a grip logging
	// reporter.
	Reporter Reporter
}

func (o *Options) applyDefaults() {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MinWait == 0 && o.MaxWait == 0 {
		o.MinWait = DefaultMinWait
		o.MaxWait = DefaultMaxWait
	}
	if o.Classifier == nil {
		o.Classifier = DefaultClassifier()
	}
	if o.Reporter == nil {
		o.Reporter = NewLoggingReporter()
	}
}

// Validate reports every invalid setting at once.
func (o *Options) Validate() error {
	catcher := grip.NewCatcher()
	catcher.NewWhen(o.BatchSize < 1, "batch size must be at least 1")
	catcher.NewWhen(o.BatchSize > math.MaxInt32, "batch size cannot exceed the server's 32-bit limit")
	catcher.NewWhen(o.MaxAttempts < 1, "max attempts must be at least 1")
	catcher.NewWhen(o.MinWait < 0, "minimum wait cannot be negative")
	catcher.NewWhen(o.MaxWait < o.MinWait, "maximum wait cannot be less than minimum wait")
	catcher.NewWhen(o.MaxFetchRetries < 0, "max fetch retries cannot be negative")
	catcher.NewWhen(o.MaxConcurrency < 0, "max concurrency cannot be negative")
	return errors.Wrap(catcher.Resolve(), "invalid migration options")
}

func (o *Options) jitter() Jitter { return Jitter{Min: o.MinWait, Max: o.MaxWait} }
