package core

import (
	"time"

	"pregnancy-guide-go/internal/models"
)

// AuthStatus is the session half of the store's state machine.
type AuthStatus string

const (
	AuthPending       AuthStatus = "pending"
	AuthAuthenticated AuthStatus = "authenticated"
	AuthAnonymous     AuthStatus = "anonymous"
)

// ProfileLoadStatus is the profile half of the store's state machine.
type ProfileLoadStatus string

const (
	ProfileIdle    ProfileLoadStatus = "idle"
	ProfileLoading ProfileLoadStatus = "loading"
	ProfileLoaded  ProfileLoadStatus = "loaded"
	ProfileErrored ProfileLoadStatus = "errored"
)

// SessionState is who is signed in. Only the identity subscription changes
// UserID, Email and Status; AuthError is owned by the auth actions.
type SessionState struct {
	UserID    string     `json:"userId,omitempty"`
	Email     string     `json:"email,omitempty"`
	Status    AuthStatus `json:"authStatus"`
	AuthError string     `json:"authError,omitempty"`
}

// ProfileState is the signed-in user's synchronized profile.
type ProfileState struct {
	OwnerID            string                 `json:"ownerId,omitempty"`
	DueDate            *time.Time             `json:"dueDate,omitempty"`
	FavoriteArticleIDs []string               `json:"favoriteArticleIds"`
	Checklist          []models.ChecklistItem `json:"checklistItems"`
	LoadStatus         ProfileLoadStatus      `json:"profileLoadStatus"`
	Error              string                 `json:"profileError,omitempty"`
	// Syncing is true while a profile write is queued, debounced or in flight.
	Syncing bool `json:"syncing"`
}

// State is an immutable snapshot of the store.
type State struct {
	Session SessionState `json:"session"`
	Profile ProfileState `json:"profile"`
	// Version increases on every change.
	Version uint64 `json:"version"`
}

// IsFavorite reports whether articleID is in the favorites set.
func (p ProfileState) IsFavorite(articleID string) bool {
	for _, id := range p.FavoriteArticleIDs {
		if id == articleID {
			return true
		}
	}
	return false
}

func emptyProfile() ProfileState {
	return ProfileState{
		FavoriteArticleIDs: []string{},
		Checklist:          []models.ChecklistItem{},
		LoadStatus:         ProfileIdle,
	}
}

func (p ProfileState) clone() ProfileState {
	c := p
	if p.DueDate != nil {
		d := *p.DueDate
		c.DueDate = &d
	}
	c.FavoriteArticleIDs = append([]string{}, p.FavoriteArticleIDs...)
	c.Checklist = append([]models.ChecklistItem{}, p.Checklist...)
	return c
}
