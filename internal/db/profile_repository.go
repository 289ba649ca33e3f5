package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pregnancy-guide-go/internal/models"
)

const usersCollection = "users"

// Firestore field paths of the profile document.
const (
	fieldUID       = "uid"
	fieldEmail     = "email"
	fieldDueDate   = "dueDate"
	fieldFavorites = "favoriteArticleIds"
	fieldChecklist = "checklistItems"
	fieldUpdatedAt = "updatedAt"
)

// firestoreProfileRepository implements the ProfileRepository interface using Firestore.
type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a new instance of firestoreProfileRepository.
func NewFirestoreProfileRepository(client *firestore.Client) (ProfileRepository, error) {
	if client == nil {
		return nil, errors.New("firestore client is not initialized for ProfileRepository")
	}
	return &firestoreProfileRepository{client: client}, nil
}

func (r *firestoreProfileRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID)
}

// EnsureDocument creates the document inside a transaction when it is missing.
// When it exists only the identity fields are merged, so favorites, checklist and
// due date survive redundant calls.
func (r *firestoreProfileRepository) EnsureDocument(ctx context.Context, userID, email string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for EnsureDocument operation")
	}
	ref := r.doc(userID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			identity := map[string]interface{}{fieldUID: userID}
			if email != "" {
				identity[fieldEmail] = email
			}
			return tx.Set(ref, identity, firestore.MergeAll)
		}
		return tx.Create(ref, newProfileDocument(userID, email))
	})
	if err != nil {
		return remoteError("ensure profile document", userID, err)
	}
	return nil
}

// Fetch retrieves the profile document by user ID (Firebase Auth UID).
func (r *firestoreProfileRepository) Fetch(ctx context.Context, userID string) (*models.ProfileDocument, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for Fetch operation")
	}
	snap, err := r.doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile for user '%s': %w", userID, ErrNotFound)
		}
		return nil, remoteError("fetch profile", userID, err)
	}

	var profile models.ProfileDocument
	if err := snap.DataTo(&profile); err != nil {
		return nil, remoteError("decode profile", userID, err)
	}
	profile.UID = snap.Ref.ID
	normalize(&profile)
	return &profile, nil
}

// WriteDueDate sets the due date, or stores null when dueDate is nil.
func (r *firestoreProfileRepository) WriteDueDate(ctx context.Context, userID string, dueDate *time.Time) error {
	var value interface{}
	if dueDate != nil {
		value = *dueDate
	}
	return r.update(ctx, "write due date", userID, firestore.Update{Path: fieldDueDate, Value: value})
}

// AddFavorite uses ArrayUnion, so concurrent adds of the same ID never duplicate it.
func (r *firestoreProfileRepository) AddFavorite(ctx context.Context, userID, articleID string) error {
	return r.update(ctx, "add favorite", userID, firestore.Update{Path: fieldFavorites, Value: firestore.ArrayUnion(articleID)})
}

// RemoveFavorite uses ArrayRemove.
func (r *firestoreProfileRepository) RemoveFavorite(ctx context.Context, userID, articleID string) error {
	return r.update(ctx, "remove favorite", userID, firestore.Update{Path: fieldFavorites, Value: firestore.ArrayRemove(articleID)})
}

// WriteChecklist replaces the checklist field as a whole. Last writer wins.
func (r *firestoreProfileRepository) WriteChecklist(ctx context.Context, userID string, items []models.ChecklistItem) error {
	if items == nil {
		items = []models.ChecklistItem{}
	}
	return r.update(ctx, "write checklist", userID, firestore.Update{Path: fieldChecklist, Value: items})
}

func (r *firestoreProfileRepository) update(ctx context.Context, op, userID string, u firestore.Update) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty for %s operation", op)
	}
	_, err := r.doc(userID).Update(ctx, []firestore.Update{
		u,
		{Path: fieldUpdatedAt, Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return remoteError(op, userID, ErrNotFound)
		}
		return remoteError(op, userID, err)
	}
	return nil
}

func newProfileDocument(userID, email string) models.ProfileDocument {
	return models.ProfileDocument{
		UID:                userID,
		Email:              email,
		FavoriteArticleIDs: []string{},
		ChecklistItems:     []models.ChecklistItem{},
	}
}

// normalize replaces null arrays with empty ones and drops duplicate favorites
// written by older clients.
func normalize(p *models.ProfileDocument) {
	if p.ChecklistItems == nil {
		p.ChecklistItems = []models.ChecklistItem{}
	}
	seen := make(map[string]struct{}, len(p.FavoriteArticleIDs))
	favorites := make([]string, 0, len(p.FavoriteArticleIDs))
	for _, id := range p.FavoriteArticleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		favorites = append(favorites, id)
	}
	p.FavoriteArticleIDs = favorites
}
