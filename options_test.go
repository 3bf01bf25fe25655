package docshift

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		opts := Options{}
		opts.applyDefaults()
		require.NoError(t, opts.Validate())

		assert.Equal(t, DefaultBatchSize, opts.BatchSize)
		assert.Equal(t, DefaultMaxAttempts, opts.MaxAttempts)
		assert.Equal(t, DefaultMinWait, opts.MinWait)
		assert.Equal(t, DefaultMaxWait, opts.MaxWait)
		assert.NotNil(t, opts.Classifier)
		assert.NotNil(t, opts.Reporter)
	})
	t.Run("ZeroWaitsSelectDefaults", func(t *testing.T) {
		opts := Options{MinWait: 0, MaxWait: 0}
		opts.applyDefaults()
		assert.Equal(t, Jitter{Min: DefaultMinWait, Max: DefaultMaxWait}, opts.jitter())
	})
	t.Run("ExplicitWaitsKept", func(t *testing.T) {
		opts := Options{MinWait: 0, MaxWait: time.Millisecond}
		opts.applyDefaults()
		assert.Zero(t, opts.MinWait)
		assert.Equal(t, time.Millisecond, opts.MaxWait)
	})
	t.Run("BatchSizeBounds", func(t *testing.T) {
		opts := Options{BatchSize: math.MaxInt32}
		opts.applyDefaults()
		assert.NoError(t, opts.Validate())

		if strconv.IntSize == 64 {
			limit := int64(math.MaxInt32)
			opts.BatchSize = int(limit + 1)
			err := opts.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "32-bit limit")
		}

		opts.BatchSize = -1
		assert.Error(t, opts.Validate())
	})
}
