package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"pregnancy-guide-go/internal/models"
)

// MemoryProfileRepository is an in-process ProfileRepository with the same
// merge and set semantics as the Firestore implementation. It backs the
// PROFILE_STORE=memory mode and tests.
type MemoryProfileRepository struct {
	mu   sync.RWMutex
	docs map[string]models.ProfileDocument
	now  func() time.Time
}

// NewMemoryProfileRepository creates an empty repository.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		docs: make(map[string]models.ProfileDocument),
		now:  time.Now,
	}
}

func (r *MemoryProfileRepository) EnsureDocument(_ context.Context, userID, email string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for EnsureDocument operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[userID]
	if !ok {
		doc = newProfileDocument(userID, email)
	} else if email != "" {
		doc.Email = email
	}
	doc.UpdatedAt = r.now().UTC()
	r.docs[userID] = doc
	return nil
}

func (r *MemoryProfileRepository) Fetch(_ context.Context, userID string) (*models.ProfileDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[userID]
	if !ok {
		return nil, fmt.Errorf("profile for user '%s': %w", userID, ErrNotFound)
	}
	out := cloneDocument(doc)
	normalize(&out)
	return &out, nil
}

func (r *MemoryProfileRepository) WriteDueDate(_ context.Context, userID string, dueDate *time.Time) error {
	return r.mutate("write due date", userID, func(doc *models.ProfileDocument) {
		if dueDate == nil {
			doc.DueDate = nil
			return
		}
		d := *dueDate
		doc.DueDate = &d
	})
}

func (r *MemoryProfileRepository) AddFavorite(_ context.Context, userID, articleID string) error {
	return r.mutate("add favorite", userID, func(doc *models.ProfileDocument) {
		if !slices.Contains(doc.FavoriteArticleIDs, articleID) {
			doc.FavoriteArticleIDs = append(doc.FavoriteArticleIDs, articleID)
		}
	})
}

func (r *MemoryProfileRepository) RemoveFavorite(_ context.Context, userID, articleID string) error {
	return r.mutate("remove favorite", userID, func(doc *models.ProfileDocument) {
		doc.FavoriteArticleIDs = slices.DeleteFunc(doc.FavoriteArticleIDs, func(id string) bool { return id == articleID })
	})
}

func (r *MemoryProfileRepository) WriteChecklist(_ context.Context, userID string, items []models.ChecklistItem) error {
	return r.mutate("write checklist", userID, func(doc *models.ProfileDocument) {
		doc.ChecklistItems = append([]models.ChecklistItem{}, items...)
	})
}

// Put stores doc as-is, replacing any existing document. Used to seed fixtures.
func (r *MemoryProfileRepository) Put(doc models.ProfileDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.UID] = cloneDocument(doc)
}

// Delete removes the document for userID.
func (r *MemoryProfileRepository) Delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, userID)
}

func (r *MemoryProfileRepository) mutate(op, userID string, fn func(doc *models.ProfileDocument)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[userID]
	if !ok {
		return remoteError(op, userID, ErrNotFound)
	}
	fn(&doc)
	doc.UpdatedAt = r.now().UTC()
	r.docs[userID] = doc
	return nil
}

func cloneDocument(doc models.ProfileDocument) models.ProfileDocument {
	out := doc
	if doc.DueDate != nil {
		d := *doc.DueDate
		out.DueDate = &d
	}
	out.FavoriteArticleIDs = append([]string(nil), doc.FavoriteArticleIDs...)
	out.ChecklistItems = append([]models.ChecklistItem(nil), doc.ChecklistItems...)
	return out
}
