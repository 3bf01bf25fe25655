package docshift

import (
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var ErrLedgerSealed = errors.New("failure ledger has already been handed off")

// Ledger accumulates documents that exhausted their insert attempts.
// It is safe for concurrent use by the writers of a batch. Once
// handed off to a sink the ledger is sealed and rejects further
// additions.
type Ledger struct {
	mu     sync.Mutex
	docs   []bson.Raw
	sealed bool
}

func NewLedger() *Ledger { return &Ledger{} }

func (l *Ledger) Add(doc bson.Raw) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sealed {
		return ErrLedgerSealed
	}

	l.docs = append(l.docs, doc)
	return nil
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.docs)
}

// Documents returns a copy of the current contents without sealing.
func (l *Ledger) Documents() []bson.Raw {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]bson.Raw, len(l.docs))
	copy(out, l.docs)
	return out
}

// Handoff seals the ledger and returns its documents. Calling it
// more than once returns the same contents.
func (l *Ledger) Handoff() []bson.Raw {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sealed = true
	out := make([]bson.Raw, len(l.docs))
	copy(out, l.docs)
	return out
}

func (l *Ledger) Sealed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sealed
}
