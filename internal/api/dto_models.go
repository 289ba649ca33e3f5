package api

import (
	"time"

	"pregnancy-guide-go/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A user-facing message
	Details string `json:"details,omitempty"` // The underlying error, if useful to the client
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// WeekResponse is returned by GET /me/week. Week is omitted when there is no
// due date or the pregnancy is outside weeks 1..42.
type WeekResponse struct {
	DueDate  *time.Time       `json:"dueDate,omitempty"`
	Week     *int             `json:"week,omitempty"`
	Articles []models.Article `json:"articles"`
}

// FavoriteToggleResponse is returned by POST /me/favorites/:articleId/toggle.
type FavoriteToggleResponse struct {
	ArticleID          string   `json:"articleId"`
	Favorite           bool     `json:"favorite"`
	FavoriteArticleIDs []string `json:"favoriteArticleIds"`
}
