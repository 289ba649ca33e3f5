package db

import (
	"context"
	"time"

	"pregnancy-guide-go/internal/models"
)

// ProfileRepository defines the storage operations for one user's profile document.
type ProfileRepository interface {
	// EnsureDocument creates the profile document with empty defaults if it does not exist.
	// Existing fields are never overwritten.
	EnsureDocument(ctx context.Context, userID, email string) error
	// Fetch returns the profile document, or an error wrapping ErrNotFound.
	Fetch(ctx context.Context, userID string) (*models.ProfileDocument, error)
	// WriteDueDate sets or clears (nil) the due date.
	WriteDueDate(ctx context.Context, userID string, dueDate *time.Time) error
	// AddFavorite adds articleID to the favorites set; adding twice is a no-op.
	AddFavorite(ctx context.Context, userID, articleID string) error
	// RemoveFavorite removes articleID from the favorites set.
	RemoveFavorite(ctx context.Context, userID, articleID string) error
	// WriteChecklist replaces the whole checklist field.
	WriteChecklist(ctx context.Context, userID string, items []models.ChecklistItem) error
}
