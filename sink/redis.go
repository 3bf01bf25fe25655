package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// RedisSink appends failed documents, encoded like FileSink lines, to
// a redis list named "<prefix>:<run id>".
type RedisSink struct {
	rdb *redis.Client
	key string
}

// NewRedisSink connects to the redis deployment at url.
func NewRedisSink(ctx context.Context, url, prefix, runID string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "problem parsing redis URL")
	}

	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "problem connecting to redis")
	}

	return &RedisSink{rdb: rdb, key: ListKey(prefix, runID)}, nil
}

// ListKey names the list a run's failures are pushed to.
func ListKey(prefix, runID string) string {
	if prefix == "" {
		prefix = "docshift:failed"
	}
	return fmt.Sprintf("%s:%s", prefix, runID)
}

func (s *RedisSink) Location() string { return "redis list " + s.key }

func (s *RedisSink) Write(ctx context.Context, docs []bson.Raw) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	records, err := listRecords(docs)
	if err != nil {
		return 0, err
	}

	if err = s.rdb.RPush(ctx, s.key, records...).Err(); err != nil {
		return 0, errors.Wrapf(err, "problem pushing %d records to '%s'", len(records), s.key)
	}

	return len(records), nil
}

// listRecords encodes docs as RPUSH arguments, one line each.
func listRecords(docs []bson.Raw) ([]interface{}, error) {
	records := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		line, err := Encode(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, string(line))
	}
	return records, nil
}

func (s *RedisSink) Close() error { return errors.WithStack(s.rdb.Close()) }
