package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func makeDocs(t *testing.T, n int) []bson.Raw {
	docs := make([]bson.Raw, n)
	for i := range docs {
		doc, err := bson.Marshal(bson.D{
			{Key: "_id", Value: bson.NewObjectID()},
			{Key: "n", Value: int32(i)},
			{Key: "sub", Value: bson.D{{Key: "ok", Value: true}}},
		})
		require.NoError(t, err)
		docs[i] = doc
	}
	return docs
}

type erroringSink struct{ err error }

func (s erroringSink) Write(context.Context, []bson.Raw) (int, error) { return 0, s.err }
func (s erroringSink) Location() string                                { return "nowhere" }

func TestFileSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("EmptyLedgerCreatesNoFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "failed.json")
		n, err := NewFileSink(path).Write(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
	t.Run("OneRecordPerLine", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "failed.json")
		docs := makeDocs(t, 3)
		s := NewFileSink(path)
		assert.Equal(t, path, s.Location())

		n, err := s.Write(ctx, docs)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		require.Len(t, lines, 3)

		for idx, line := range lines {
			var out bson.Raw
			require.NoError(t, bson.UnmarshalExtJSON([]byte(line), false, &out))
			assert.Equal(t, docs[idx].Lookup("_id"), out.Lookup("_id"))
			assert.Equal(t, int32(idx), out.Lookup("n").Int32())
			assert.True(t, out.Lookup("sub", "ok").Boolean())
		}
	})
	t.Run("ReplacesExistingFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "failed.json")
		require.NoError(t, os.WriteFile(path, []byte("stale\nstale\nstale\nstale\n"), 0644))

		n, err := NewFileSink(path).Write(ctx, makeDocs(t, 1))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(data), "\n"))
		assert.NotContains(t, string(data), "stale")
	})
	t.Run("RequiresPath", func(t *testing.T) {
		_, err := NewFileSink("").Write(ctx, makeDocs(t, 1))
		assert.Error(t, err)
	})
	t.Run("InvalidDocument", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "failed.json")
		_, err := NewFileSink(path).Write(ctx, []bson.Raw{bson.Raw("not bson")})
		assert.Error(t, err)
	})
	t.Run("CanceledContext", func(t *testing.T) {
		cctx, ccancel := context.WithCancel(ctx)
		ccancel()
		path := filepath.Join(t.TempDir(), "failed.json")
		n, err := NewFileSink(path).Write(cctx, makeDocs(t, 2))
		assert.Error(t, err)
		assert.Zero(t, n)
	})
}

func TestMultiSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "failed.json")
	m := Multi{NewFileSink(path), erroringSink{err: errors.New("unavailable")}}
	assert.Equal(t, path, m.Location())

	n, err := m.Write(ctx, makeDocs(t, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Zero(t, n)

	_, err = os.Stat(path)
	assert.NoError(t, err, "the healthy sink still receives the records")

	assert.Equal(t, "", Multi{}.Location())
	n, err = Multi{}.Write(ctx, makeDocs(t, 2))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEncode(t *testing.T) {
	docs := makeDocs(t, 1)
	line, err := Encode(docs[0])
	require.NoError(t, err)
	assert.NotContains(t, string(line), "\n")
	assert.Contains(t, string(line), `"$oid"`)
}

func TestListRecords(t *testing.T) {
	docs := makeDocs(t, 3)
	records, err := listRecords(docs)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for idx, rec := range records {
		line, ok := rec.(string)
		require.True(t, ok)
		assert.NotContains(t, line, "\n")

		var out bson.Raw
		require.NoError(t, bson.UnmarshalExtJSON([]byte(line), false, &out))
		assert.Equal(t, docs[idx].Lookup("_id"), out.Lookup("_id"))
	}

	_, err = listRecords([]bson.Raw{docs[0], bson.Raw("not bson")})
	assert.Error(t, err)

	records, err = listRecords(nil)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisSink(t *testing.T) {
	assert.Equal(t, "docshift:failed:run", ListKey("", "run"))
	assert.Equal(t, "prefix:run", ListKey("prefix", "run"))

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewRedisSink(ctx, url, "docshift:test", bson.NewObjectID().Hex())
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()
	defer s.rdb.Del(ctx, s.key)

	n, err := s.Write(ctx, makeDocs(t, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	length, err := s.rdb.LLen(ctx, s.key).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 4, length)
}
