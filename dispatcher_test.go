package docshift

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mongodb/docshift/mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func makeBatch(t *testing.T, n int) Batch {
	batch := make(Batch, n)
	for i := range batch {
		batch[i] = mustDoc(t, i)
	}
	return batch
}

func docNumber(doc bson.Raw) int32 { return doc.Lookup("n").Int32() }

type gatedDestination struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (d *gatedDestination) InsertOne(ctx context.Context, doc bson.Raw) error {
	cur := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		old := d.peak.Load()
		if cur <= old || d.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return nil
}

func TestDispatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("Constructor", func(t *testing.T) {
		dest := mock.NewDestination()
		_, err := NewDispatcher(nil, NewLedger(), &Counters{}, Options{})
		assert.Error(t, err)
		_, err = NewDispatcher(dest, nil, &Counters{}, Options{})
		assert.Error(t, err)
		_, err = NewDispatcher(dest, NewLedger(), nil, Options{})
		assert.Error(t, err)
		_, err = NewDispatcher(dest, NewLedger(), &Counters{}, Options{BatchSize: -4})
		assert.Error(t, err)
	})
	t.Run("EmptyBatch", func(t *testing.T) {
		counters := &Counters{}
		rep := newRecordingReporter()
		opts := fastOptions(2)
		opts.Reporter = rep
		d, err := NewDispatcher(mock.NewDestination(), NewLedger(), counters, opts)
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(ctx, nil))
		assert.Zero(t, counters.Dispatched())
		assert.Empty(t, rep.progress)
	})
	t.Run("ExhaustedDocumentsGoToLedger", func(t *testing.T) {
		dest := mock.NewDestination()
		dest.Fail = mock.FailMatching(func(doc bson.Raw) bool {
			n := docNumber(doc)
			return n == 1 || n == 3
		}, errThrottled)

		ledger := NewLedger()
		counters := &Counters{}
		rep := newRecordingReporter()
		opts := fastOptions(2)
		opts.Reporter = rep
		d, err := NewDispatcher(dest, ledger, counters, opts)
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(ctx, makeBatch(t, 5)))

		assert.Equal(t, 2, ledger.Len())
		assert.EqualValues(t, 5, counters.Dispatched())
		assert.EqualValues(t, 3, counters.Confirmed())
		assert.EqualValues(t, 2, counters.Failed())
		assert.EqualValues(t, 4, counters.Throttled())
		assert.Len(t, dest.InsertedDocs(), 3)

		failed := map[int32]bool{}
		for _, doc := range ledger.Documents() {
			failed[docNumber(doc)] = true
		}
		assert.Equal(t, map[int32]bool{1: true, 3: true}, failed)

		require.Len(t, rep.progress, 1)
		assert.Equal(t, Progress{Batch: 1, BatchSize: 5, Total: 5}, rep.progress[0])
	})
	t.Run("CountsAccumulateAcrossBatches", func(t *testing.T) {
		counters := &Counters{}
		rep := newRecordingReporter()
		opts := fastOptions(1)
		opts.Reporter = rep
		d, err := NewDispatcher(mock.NewDestination(), NewLedger(), counters, opts)
		require.NoError(t, err)

		batch := makeBatch(t, 7)
		require.NoError(t, d.Dispatch(ctx, batch[:4]))
		require.NoError(t, d.Dispatch(ctx, batch[4:]))

		assert.EqualValues(t, 7, counters.Dispatched())
		require.Len(t, rep.progress, 2)
		assert.EqualValues(t, 4, rep.progress[0].Total)
		assert.EqualValues(t, 7, rep.progress[1].Total)
		assert.Equal(t, 2, rep.progress[1].Batch)
	})
	t.Run("FatalErrorAbortsBatch", func(t *testing.T) {
		dest := mock.NewDestination()
		dest.Fail = mock.FailMatching(func(doc bson.Raw) bool { return docNumber(doc) == 2 }, errFatal)

		ledger := NewLedger()
		counters := &Counters{}
		rep := newRecordingReporter()
		opts := fastOptions(3)
		opts.Reporter = rep
		d, err := NewDispatcher(dest, ledger, counters, opts)
		require.NoError(t, err)

		err = d.Dispatch(ctx, makeBatch(t, 5))
		require.Error(t, err)
		assert.Equal(t, errFatal, errors.Cause(err))
		assert.Zero(t, counters.Dispatched())
		assert.Zero(t, ledger.Len())
		assert.Empty(t, rep.progress)
	})
	t.Run("SealedLedgerIsFatal", func(t *testing.T) {
		dest := mock.NewDestination()
		dest.Fail = mock.AlwaysFail(errThrottled)
		ledger := NewLedger()
		ledger.Handoff()

		d, err := NewDispatcher(dest, ledger, &Counters{}, fastOptions(1))
		require.NoError(t, err)

		err = d.Dispatch(ctx, makeBatch(t, 1))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLedgerSealed)
	})
	t.Run("ConcurrencyLimit", func(t *testing.T) {
		dest := &gatedDestination{}
		opts := fastOptions(1)
		opts.MaxConcurrency = 2
		d, err := NewDispatcher(dest, NewLedger(), &Counters{}, opts)
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(ctx, makeBatch(t, 10)))
		assert.LessOrEqual(t, dest.peak.Load(), int32(2))
		assert.Zero(t, dest.inFlight.Load())
	})
	t.Run("FanOutMatchesBatchSize", func(t *testing.T) {
		dest := &gatedDestination{}
		d, err := NewDispatcher(dest, NewLedger(), &Counters{}, fastOptions(1))
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(ctx, makeBatch(t, 10)))
		assert.Greater(t, dest.peak.Load(), int32(1))
	})
}
