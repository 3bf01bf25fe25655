package db

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var ErrCursorClosed = errors.New("cursor is closed")

// HasErrorCode reports whether err, or any error it wraps, is a
// server error carrying one of the given codes.
func HasErrorCode(err error, codes ...int) bool {
	if err == nil {
		return false
	}

	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}

	for _, code := range codes {
		if se.HasErrorCode(code) {
			return true
		}
	}

	return false
}
