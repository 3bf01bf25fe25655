package apm

import (
	"context"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/recovery"
)

// StartLogging logs and rotates the monitor's window on the given
// interval until ctx is canceled. Empty windows are not logged.
func StartLogging(ctx context.Context, interval time.Duration, m *Monitor) {
	go func() {
		defer recovery.LogStackTraceAndContinue("driver command logger")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w := m.Rotate()
				grip.InfoWhen(len(w.Records) > 0, w.Message())
			}
		}
	}()
}
