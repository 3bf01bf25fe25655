// Package mock contains in-memory implementations of the interfaces
// defined in the docshift/db package.
package mock

import (
	"context"
	"sync"

	"github.com/mongodb/docshift/db"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Source serves a fixed set of documents in batches of the requested
// size. Errors queued in FindErrors are returned by successive Find
// calls; errors queued in AdvanceErrors[n] are returned, one per call,
// before batch n is produced.
type Source struct {
	Docs          []bson.Raw
	FindErrors    []error
	AdvanceErrors map[int][]error
	CloseError    error

	FindCalls    int
	AdvanceCalls int
	Batches      [][]bson.Raw
	Opts         db.FindOptions
	Closed       bool

	mu sync.Mutex
}

// NewSource builds a source holding docs.
func NewSource(docs ...bson.Raw) *Source {
	return &Source{Docs: docs, AdvanceErrors: map[int][]error{}}
}

func (s *Source) Find(ctx context.Context, opts db.FindOptions) (db.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FindCalls++
	s.Opts = opts
	if len(s.FindErrors) > 0 {
		err := s.FindErrors[0]
		s.FindErrors = s.FindErrors[1:]
		return nil, err
	}

	size := int(opts.BatchSize)
	if size <= 0 {
		size = len(s.Docs)
	}

	return &Cursor{source: s, size: size}, nil
}

// BatchSizes reports the length of every batch served so far.
func (s *Source) BatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, len(s.Batches))
	for idx := range s.Batches {
		out[idx] = len(s.Batches[idx])
	}
	return out
}

type Cursor struct {
	source *Source
	size   int
	pos    int
	batch  int
	closed bool
}

func (c *Cursor) NextBatch(ctx context.Context) ([]bson.Raw, bool, error) {
	s := c.source
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return nil, false, db.ErrCursorClosed
	}

	s.AdvanceCalls++
	if errs := s.AdvanceErrors[c.batch]; len(errs) > 0 {
		s.AdvanceErrors[c.batch] = errs[1:]
		return nil, false, errs[0]
	}

	if c.pos >= len(s.Docs) {
		return nil, false, nil
	}

	end := c.pos + c.size
	if end > len(s.Docs) {
		end = len(s.Docs)
	}

	batch := make([]bson.Raw, end-c.pos)
	copy(batch, s.Docs[c.pos:end])
	c.pos = end
	c.batch++
	s.Batches = append(s.Batches, batch)

	return batch, true, nil
}

func (c *Cursor) Close(ctx context.Context) error {
	c.source.mu.Lock()
	defer c.source.mu.Unlock()

	c.closed = true
	c.source.Closed = true
	return c.source.CloseError
}

// Upserter records upserted documents by id.
type Upserter struct {
	Docs       map[interface{}]interface{}
	FailWrites bool
	mu         sync.Mutex
}

func NewUpserter() *Upserter { return &Upserter{Docs: map[interface{}]interface{}{}} }

func (u *Upserter) Upsert(ctx context.Context, id interface{}, doc interface{}) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.FailWrites {
		return errWritesFail
	}

	u.Docs[id] = doc
	return nil
}
