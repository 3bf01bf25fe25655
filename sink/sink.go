// Package sink delivers the documents a migration could not write to
// somewhere durable.
package sink

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Sink persists failed documents. Write reports how many records it
// stored; an empty input stores nothing and creates nothing.
type Sink interface {
	Write(context.Context, []bson.Raw) (int, error)
	Location() string
}

// Encode renders a document as one line of relaxed extended JSON.
func Encode(doc bson.Raw) ([]byte, error) {
	out, err := bson.MarshalExtJSON(doc, false, false)
	return out, errors.Wrap(err, "problem encoding document as extended JSON")
}

// Multi writes to every member, continuing past failures, and reports
// the smallest count any member stored.
type Multi []Sink

func (m Multi) Write(ctx context.Context, docs []bson.Raw) (int, error) {
	catcher := grip.NewCatcher()
	written := len(docs)
	for _, s := range m {
		n, err := s.Write(ctx, docs)
		catcher.Wrapf(err, "problem writing to %s", s.Location())
		if n < written {
			written = n
		}
	}

	return written, catcher.Resolve()
}

func (m Multi) Location() string {
	if len(m) == 0 {
		return ""
	}
	return m[0].Location()
}
