package models

import "time"

// ProfileDocument is the per-user document stored in the "users" collection.
// The document ID is the Firebase Auth UID.
type ProfileDocument struct {
	UID                string          `json:"uid" firestore:"uid"`
	Email              string          `json:"email,omitempty" firestore:"email"`
	DueDate            *time.Time      `json:"dueDate,omitempty" firestore:"dueDate"`
	FavoriteArticleIDs []string        `json:"favoriteArticleIds" firestore:"favoriteArticleIds"`
	ChecklistItems     []ChecklistItem `json:"checklistItems" firestore:"checklistItems"`
	UpdatedAt          time.Time       `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// ChecklistItem is one entry of a user's personal checklist.
type ChecklistItem struct {
	ID        string    `json:"id" firestore:"id"`
	Text      string    `json:"text" firestore:"text"`
	Completed bool      `json:"completed" firestore:"completed"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}
