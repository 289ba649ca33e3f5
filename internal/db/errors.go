package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document is not found in the store.
var ErrNotFound = errors.New("document not found")

// RemoteError reports a read or write failure against the document store.
type RemoteError struct {
	Op     string
	UserID string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s for user '%s': %v", e.Op, e.UserID, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func remoteError(op, userID string, err error) error {
	return &RemoteError{Op: op, UserID: userID, Err: err}
}
