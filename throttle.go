package docshift

import (
	"strings"

	"github.com/mongodb/docshift/db"
)

const (
	// ThrottleSignature is the message Cosmos DB attaches to
	// rate-limited requests.
	ThrottleSignature = "request rate is large"

	// ThrottleCode is the server error code for rate-limited
	// requests ("TooManyRequests").
	ThrottleCode = 16500
)

// Classifier decides whether an error is a transient rate-limit
// rejection that is safe to retry. Anything a Classifier does not
// recognize is treated as fatal.
type Classifier interface {
	IsTransient(error) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(error) bool

func (f ClassifierFunc) IsTransient(err error) bool { return err != nil && f(err) }

// MessageClassifier matches the error text against known signatures,
// ignoring case.
type MessageClassifier struct {
	Signatures []string
}

func (c MessageClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range c.Signatures {
		if sig != "" && strings.Contains(msg, strings.ToLower(sig)) {
			return true
		}
	}

	return false
}

// CodeClassifier matches structured server error codes.
type CodeClassifier struct {
	Codes []int
}

func (c CodeClassifier) IsTransient(err error) bool {
	return len(c.Codes) > 0 && db.HasErrorCode(err, c.Codes...)
}

// AnyClassifier reports an error as transient when any member does.
type AnyClassifier []Classifier

func (c AnyClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	for _, cl := range c {
		if cl != nil && cl.IsTransient(err) {
			return true
		}
	}

	return false
}

// DefaultClassifier checks the server error code first and falls
// back to the message signature for errors that carry no code.
func DefaultClassifier() Classifier {
	return AnyClassifier{
		CodeClassifier{Codes: []int{ThrottleCode}},
		MessageClassifier{Signatures: []string{ThrottleSignature}},
	}
}

var defaultClassifier = DefaultClassifier()

// IsThrottled reports whether err is a rate-limit rejection according
// to the default classifier.
func IsThrottled(err error) bool { return defaultClassifier.IsTransient(err) }
