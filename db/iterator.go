package db

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// batchCursor regroups a driver cursor's documents into the batches
// the server returned them in: a batch ends when the driver holds no
// more locally buffered documents.
//
// The driver only contacts the server (getMore) when its local buffer
// is empty, which is always at the start of a call to NextBatch, so a
// failed advance never discards documents from a partially read batch.
type batchCursor struct {
	cursor *mongo.Cursor
	closed bool
}

func (c *batchCursor) NextBatch(ctx context.Context) ([]bson.Raw, bool, error) {
	if c.closed {
		return nil, false, ErrCursorClosed
	}

	var batch []bson.Raw
	for c.cursor.Next(ctx) {
		doc := make(bson.Raw, len(c.cursor.Current))
		copy(doc, c.cursor.Current)
		batch = append(batch, doc)

		if c.cursor.RemainingBatchLength() == 0 {
			return batch, true, nil
		}
	}

	if err := c.cursor.Err(); err != nil {
		if len(batch) > 0 {
			// a batch cannot fail half way through; surface what was
			// read and let the next call report the error.
			return batch, true, nil
		}
		return nil, false, errors.Wrap(err, "problem advancing cursor")
	}

	return batch, len(batch) > 0, nil
}

func (c *batchCursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return errors.WithStack(c.cursor.Close(ctx))
}
