package identity

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrorKind classifies identity provider failures.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindEmailInUse         ErrorKind = "email_in_use"
	KindWrongCredentials   ErrorKind = "wrong_credentials"
	KindNetwork            ErrorKind = "network"
	KindUnknown            ErrorKind = "unknown"
)

// AuthError is returned by every Provider and Adapter operation that fails.
type AuthError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// KindOf returns the kind of an AuthError in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}

// Identity toolkit error codes, reported in googleapi.Error.Message.
var errorCodeKinds = map[string]ErrorKind{
	"EMAIL_EXISTS":              KindEmailInUse,
	"INVALID_EMAIL":             KindInvalidCredentials,
	"WEAK_PASSWORD":             KindInvalidCredentials,
	"MISSING_PASSWORD":          KindInvalidCredentials,
	"MISSING_EMAIL":             KindInvalidCredentials,
	"INVALID_PASSWORD":          KindWrongCredentials,
	"EMAIL_NOT_FOUND":           KindWrongCredentials,
	"INVALID_LOGIN_CREDENTIALS": KindWrongCredentials,
	"USER_DISABLED":             KindWrongCredentials,
}

// classify wraps a raw provider error in an AuthError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &AuthError{Kind: kindFor(err), Op: op, Err: err}
}

func kindFor(err error) ErrorKind {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		// Anything that never produced an API response is a transport failure.
		return KindNetwork
	}
	code := errorCode(apiErr)
	if kind, ok := errorCodeKinds[code]; ok {
		return kind
	}
	if apiErr.Code >= 500 {
		return KindNetwork
	}
	return KindUnknown
}

// errorCode extracts "WEAK_PASSWORD" from messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func errorCode(apiErr *googleapi.Error) string {
	msg := apiErr.Message
	if msg == "" && len(apiErr.Errors) > 0 {
		msg = apiErr.Errors[0].Message
	}
	if i := strings.IndexAny(msg, " :"); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}
