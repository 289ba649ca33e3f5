package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxChecklistTextLength is the longest checklist entry, in characters.
	MaxChecklistTextLength = 200

	earliestDueDate = 310 * 24 * time.Hour
	latestDueDate   = 370 * 24 * time.Hour
)

// ValidateChecklistText trims text and checks it is 1..200 characters long.
func ValidateChecklistText(text string) (string, error) {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return "", &ValidationError{Field: "text", Message: "must not be empty"}
	}
	if n > MaxChecklistTextLength {
		return "", &ValidationError{Field: "text", Message: "must be at most 200 characters"}
	}
	return text, nil
}

// ValidateDueDate accepts a nil date (clearing it) or a date between 310 days
// before and 370 days after now.
func ValidateDueDate(due *time.Time, now time.Time) error {
	if due == nil {
		return nil
	}
	if due.Before(now.Add(-earliestDueDate)) {
		return &ValidationError{Field: "dueDate", Message: "is too far in the past"}
	}
	if due.After(now.Add(latestDueDate)) {
		return &ValidationError{Field: "dueDate", Message: "is too far in the future"}
	}
	return nil
}
