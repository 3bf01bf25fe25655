package mock

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var errWritesFail = errors.New("writes fail")

// InsertFunc decides the result of one insert attempt. attempt counts
// from 1 for each distinct document.
type InsertFunc func(doc bson.Raw, attempt int) error

// Destination records inserts in memory. Documents are told apart by
// their encoded bytes, so tests should use distinct documents.
type Destination struct {
	Inserted []bson.Raw
	Calls    int
	Fail     InsertFunc

	attempts map[string]int
	mu       sync.Mutex
}

func NewDestination() *Destination {
	return &Destination{attempts: map[string]int{}}
}

func (d *Destination) InsertOne(ctx context.Context, doc bson.Raw) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attempts == nil {
		d.attempts = map[string]int{}
	}

	d.Calls++
	d.attempts[string(doc)]++
	if d.Fail != nil {
		if err := d.Fail(doc, d.attempts[string(doc)]); err != nil {
			return err
		}
	}

	d.Inserted = append(d.Inserted, doc)
	return nil
}

// Attempts reports how many inserts were tried for doc.
func (d *Destination) Attempts(doc bson.Raw) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.attempts[string(doc)]
}

func (d *Destination) TotalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.Calls
}

func (d *Destination) InsertedDocs() []bson.Raw {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]bson.Raw, len(d.Inserted))
	copy(out, d.Inserted)
	return out
}

// AlwaysFail returns err for every attempt.
func AlwaysFail(err error) InsertFunc {
	return func(bson.Raw, int) error { return err }
}

// FailFirst returns err for the first n attempts at each document.
func FailFirst(n int, err error) InsertFunc {
	return func(_ bson.Raw, attempt int) error {
		if attempt <= n {
			return err
		}
		return nil
	}
}

// FailMatching returns err for every attempt at documents for which
// match reports true.
func FailMatching(match func(bson.Raw) bool, err error) InsertFunc {
	return func(doc bson.Raw, _ int) error {
		if match(doc) {
			return err
		}
		return nil
	}
}
