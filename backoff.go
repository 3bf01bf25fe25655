package docshift

import (
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
)

// Jitter draws pause durations uniformly from [Min, Max]. All Jitter
// values share the runtime's process-wide generator, which is safe
// for concurrent use and seeded once at startup.
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

func (j Jitter) Next() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}

	return j.Min + rand.N(j.Max-j.Min+1)
}

// backoff builds a go-retry policy that waits a fresh jittered
// interval before every retry, without limit.
func (j Jitter) backoff() retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return j.Next(), false
	})
}

// limited allows at most retries retries; zero allows none.
func (j Jitter) limited(retries int) retry.Backoff {
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), j.backoff())
}
