package triage

import (
	"errors"
	"fmt"
)

// ErrInvalidTag is returned when a decision carries a tag other than Keep or Delete.
var ErrInvalidTag = errors.New("invalid tag")

// ErrDuplicateID is returned when a working set contains two items with the same ID.
var ErrDuplicateID = errors.New("duplicate item id")

// OutOfRangeError is returned by Decide when every item has already been decided.
type OutOfRangeError struct {
	Cursor int
	Len    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("triage complete: cursor %d of %d items, nothing left to decide", e.Cursor, e.Len)
}

// IsOutOfRange reports whether err is (or wraps) an OutOfRangeError.
func IsOutOfRange(err error) bool {
	var oor *OutOfRangeError
	return errors.As(err, &oor)
}
