package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pregnancy-guide-go/internal/core"
	"pregnancy-guide-go/internal/models"
)

// dueDateLayout is the format of an HTML date input.
const dueDateLayout = "2006-01-02"

// ProfileActions is the part of the store the /me endpoints drive.
type ProfileActions interface {
	State() core.State
	Refresh(ctx context.Context) (core.State, error)
	CurrentWeek() (int, bool)
	UpdateDueDate(due *time.Time) error
	ToggleFavorite(articleID string) (bool, error)
	AddChecklistItem(text string) (models.ChecklistItem, error)
	ToggleChecklistItem(itemID string) (models.ChecklistItem, error)
	UpdateChecklistItemText(itemID, text string) (models.ChecklistItem, error)
	RemoveChecklistItem(itemID string) error
}

// ProfileHandler handles the signed-in user's profile. Mutations answer with
// the optimistic result; write failures surface later as profileError.
type ProfileHandler struct {
	store   ProfileActions
	catalog ContentLookup
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store ProfileActions, catalog ContentLookup) *ProfileHandler {
	return &ProfileHandler{store: store, catalog: catalog}
}

// GetProfile handles GET /api/v1/me.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.State())
}

// Refresh handles POST /api/v1/me/refresh, the manual retry after a failed sync.
func (h *ProfileHandler) Refresh(c *gin.Context) {
	state, err := h.store.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// UpdateDueDate handles PUT /api/v1/me/due-date. A null dueDate clears it.
func (h *ProfileHandler) UpdateDueDate(c *gin.Context) {
	var req models.DueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var due *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := time.ParseInLocation(dueDateLayout, *req.DueDate, time.UTC)
		if err != nil {
			respondError(c, &core.ValidationError{Field: "dueDate", Message: "must be a date in YYYY-MM-DD format"})
			return
		}
		due = &parsed
	}

	if err := h.store.UpdateDueDate(due); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.store.State().Profile)
}

// GetWeek handles GET /api/v1/me/week: the current gestational week and its articles.
func (h *ProfileHandler) GetWeek(c *gin.Context) {
	resp := WeekResponse{
		DueDate:  h.store.State().Profile.DueDate,
		Articles: []models.Article{},
	}
	if week, ok := h.store.CurrentWeek(); ok {
		resp.Week = &week
		resp.Articles = h.catalog.ListForWeek(c.Request.Context(), week)
	}
	c.JSON(http.StatusOK, resp)
}

// ListFavorites handles GET /api/v1/me/favorites. Ids with no matching
// article are left out.
func (h *ProfileHandler) ListFavorites(c *gin.Context) {
	ids := h.store.State().Profile.FavoriteArticleIDs
	c.JSON(http.StatusOK, core.FavoriteArticlesDetailed(ids, h.catalog.ListAll(c.Request.Context())))
}

// ToggleFavorite handles POST /api/v1/me/favorites/:articleId/toggle. Unknown
// articles can be removed from the favorites but not added.
func (h *ProfileHandler) ToggleFavorite(c *gin.Context) {
	articleID := c.Param("articleId")
	if _, ok := h.catalog.GetByID(c.Request.Context(), articleID); !ok && !h.store.State().Profile.IsFavorite(articleID) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Article not found"})
		return
	}

	favorite, err := h.store.ToggleFavorite(articleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FavoriteToggleResponse{
		ArticleID:          articleID,
		Favorite:           favorite,
		FavoriteArticleIDs: h.store.State().Profile.FavoriteArticleIDs,
	})
}

// AddChecklistItem handles POST /api/v1/me/checklist.
func (h *ProfileHandler) AddChecklistItem(c *gin.Context) {
	var req models.ChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := h.store.AddChecklistItem(req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateChecklistItem handles PATCH /api/v1/me/checklist/:itemId.
func (h *ProfileHandler) UpdateChecklistItem(c *gin.Context) {
	var req models.ChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := h.store.UpdateChecklistItemText(c.Param("itemId"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ToggleChecklistItem handles POST /api/v1/me/checklist/:itemId/toggle.
func (h *ProfileHandler) ToggleChecklistItem(c *gin.Context) {
	item, err := h.store.ToggleChecklistItem(c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// RemoveChecklistItem handles DELETE /api/v1/me/checklist/:itemId.
func (h *ProfileHandler) RemoveChecklistItem(c *gin.Context) {
	if err := h.store.RemoveChecklistItem(c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
