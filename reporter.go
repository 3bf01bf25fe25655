package docshift

import (
	"sync/atomic"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/sometimes"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Stage identifies where a throttled request happened.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageInsert Stage = "insert"
)

// Progress is emitted once per fully dispatched batch.
type Progress struct {
	RunID     string
	Batch     int
	BatchSize int
	Total     int64
}

// Reporter observes a run. Implementations must be safe for
// concurrent use: every method except BatchDispatched is called from
// the writers of a batch.
type Reporter interface {
	Throttled(stage Stage, attempt int, err error)
	Confirmed()
	Failed(doc bson.Raw)
	BatchDispatched(Progress)
}

// Counters tally a run. Dispatched only moves after a batch has
// joined; the other counters move as writers finish.
type Counters struct {
	dispatched atomic.Int64
	confirmed  atomic.Int64
	failed     atomic.Int64
	throttled  atomic.Int64
}

// Dispatched is the number of documents attempted so far, whether or
// not they were confirmed.
func (c *Counters) Dispatched() int64 { return c.dispatched.Load() }
func (c *Counters) Confirmed() int64  { return c.confirmed.Load() }
func (c *Counters) Failed() int64     { return c.failed.Load() }
func (c *Counters) Throttled() int64  { return c.throttled.Load() }

func (c *Counters) addDispatched(n int) int64 { return c.dispatched.Add(int64(n)) }

// Fields renders the counters for structured log messages.
func (c *Counters) Fields() message.Fields {
	return message.Fields{
		"dispatched": c.Dispatched(),
		"confirmed":  c.Confirmed(),
		"failed":     c.Failed(),
		"throttled":  c.Throttled(),
	}
}

// countingReporter keeps the run's counters in step with whatever
// reporter the caller supplied.
type countingReporter struct {
	counters *Counters
	Reporter
}

func (r countingReporter) Throttled(stage Stage, attempt int, err error) {
	r.counters.throttled.Add(1)
	r.Reporter.Throttled(stage, attempt, err)
}

func (r countingReporter) Confirmed() {
	r.counters.confirmed.Add(1)
	r.Reporter.Confirmed()
}

func (r countingReporter) Failed(doc bson.Raw) {
	r.counters.failed.Add(1)
	r.Reporter.Failed(doc)
}

type loggingReporter struct{}

// NewLoggingReporter logs progress through grip. Throttle events are
// sampled to keep sustained rate limiting from flooding the log.
func NewLoggingReporter() Reporter { return loggingReporter{} }

func (loggingReporter) Throttled(stage Stage, attempt int, err error) {
	grip.DebugWhen(sometimes.Percent(10), message.WrapError(err, message.Fields{
		"message": "request throttled, backing off",
		"stage":   stage,
		"attempt": attempt,
	}))
}

func (loggingReporter) Confirmed() {}

func (loggingReporter) Failed(doc bson.Raw) {
	fields := message.Fields{"message": "document exhausted insert attempts"}
	if id, err := doc.LookupErr("_id"); err == nil {
		fields["id"] = id.String()
	}
	grip.Warning(fields)
}

func (loggingReporter) BatchDispatched(p Progress) {
	grip.Info(message.Fields{
		"message":    "total documents copied so far",
		"run":        p.RunID,
		"batch":      p.Batch,
		"batch_size": p.BatchSize,
		"total":      p.Total,
	})
}

// MultiReporter fans events out to every member in order.
type MultiReporter []Reporter

func (m MultiReporter) Throttled(stage Stage, attempt int, err error) {
	for _, r := range m {
		r.Throttled(stage, attempt, err)
	}
}

func (m MultiReporter) Confirmed() {
	for _, r := range m {
		r.Confirmed()
	}
}

func (m MultiReporter) Failed(doc bson.Raw) {
	for _, r := range m {
		r.Failed(doc)
	}
}

func (m MultiReporter) BatchDispatched(p Progress) {
	for _, r := range m {
		r.BatchDispatched(p)
	}
}
