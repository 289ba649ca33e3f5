package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by profile actions when nobody is signed in.
	ErrNotAuthenticated = errors.New("please sign in to save your profile")
	// ErrChecklistItemNotFound is returned when a checklist item id is unknown.
	ErrChecklistItemNotFound = errors.New("checklist item not found")
	// ErrStoreClosed is returned by every action after Close.
	ErrStoreClosed = errors.New("store is closed")
	// ErrProfileMissing is recorded when the profile document is still absent after provisioning.
	ErrProfileMissing = errors.New("profile document is missing after provisioning")
)

// ValidationError reports rejected user input. It is returned to the caller
// and never recorded in State.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
