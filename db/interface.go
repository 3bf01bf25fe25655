package db

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Source opens cursors over a collection. The migration engine reads
// through this interface only, which keeps the driver out of the
// engine and lets tests substitute in-memory collections.
type Source interface {
	Find(context.Context, FindOptions) (Cursor, error)
}

// Destination accepts single documents.
type Destination interface {
	InsertOne(context.Context, bson.Raw) error
}

// Cursor is a narrow view of a driver cursor that surfaces server
// batches rather than individual documents.
//
// NextBatch reports false once the result set is exhausted. A
// non-nil error leaves the cursor at the same position, so callers
// may call NextBatch again after a transient failure.
type Cursor interface {
	NextBatch(context.Context) ([]bson.Raw, bool, error)
	Close(context.Context) error
}

// Upserter replaces or inserts a document by _id. The run metadata
// record is written through this interface.
type Upserter interface {
	Upsert(ctx context.Context, id interface{}, doc interface{}) error
}
