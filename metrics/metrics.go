// Package metrics exports migration progress as prometheus counters.
package metrics

import (
	"github.com/mongodb/docshift"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Reporter is a docshift.Reporter that counts run events. Register
// it alongside the logging reporter with docshift.MultiReporter.
type Reporter struct {
	dispatched prometheus.Counter
	confirmed  prometheus.Counter
	failed     prometheus.Counter
	throttled  *prometheus.CounterVec
	batches    prometheus.Counter
}

// NewReporter registers the migration counters with reg. A nil reg
// creates the counters without registering them.
func NewReporter(reg prometheus.Registerer) *Reporter {
	factory := promauto.With(reg)

	return &Reporter{
		dispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "docshift_documents_dispatched_total",
			Help: "Total number of documents dispatched to the destination",
		}),
		confirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docshift_documents_confirmed_total",
			Help: "Total number of documents the destination accepted",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docshift_documents_failed_total",
			Help: "Total number of documents that exhausted their insert attempts",
		}),
		throttled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docshift_throttled_total",
				Help: "Total number of rate-limited requests",
			},
			[]string{"stage"},
		),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "docshift_batches_total",
			Help: "Total number of batches dispatched",
		}),
	}
}

func (r *Reporter) Throttled(stage docshift.Stage, _ int, _ error) {
	r.throttled.WithLabelValues(string(stage)).Inc()
}

func (r *Reporter) Confirmed()      { r.confirmed.Inc() }
func (r *Reporter) Failed(bson.Raw) { r.failed.Inc() }

func (r *Reporter) BatchDispatched(p docshift.Progress) {
	r.batches.Inc()
	r.dispatched.Add(float64(p.BatchSize))
}
