package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pregnancy-guide-go/internal/models"
)

// ContentLookup is the read-only article catalog. *content.Catalog satisfies it.
type ContentLookup interface {
	ListAll(ctx context.Context) []models.Article
	GetByID(ctx context.Context, id string) (models.Article, bool)
	ListForWeek(ctx context.Context, week int) []models.Article
	Tags(ctx context.Context) []string
	ListByTag(ctx context.Context, tag string) []models.Article
}

// ContentHandler serves the article catalog.
type ContentHandler struct {
	catalog ContentLookup
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(catalog ContentLookup) *ContentHandler {
	return &ContentHandler{catalog: catalog}
}

// ListArticles handles GET /api/v1/articles, newest first.
func (h *ContentHandler) ListArticles(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.ListAll(c.Request.Context()))
}

// GetArticle handles GET /api/v1/articles/:articleId.
func (h *ContentHandler) GetArticle(c *gin.Context) {
	article, ok := h.catalog.GetByID(c.Request.Context(), c.Param("articleId"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

// ListArticlesForWeek handles GET /api/v1/weeks/:week/articles.
func (h *ContentHandler) ListArticlesForWeek(c *gin.Context) {
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Week must be a number", Details: c.Param("week")})
		return
	}
	c.JSON(http.StatusOK, h.catalog.ListForWeek(c.Request.Context(), week))
}

// ListTags handles GET /api/v1/tags.
func (h *ContentHandler) ListTags(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Tags(c.Request.Context()))
}

// ListArticlesByTag handles GET /api/v1/tags/:tag/articles.
func (h *ContentHandler) ListArticlesByTag(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.ListByTag(c.Request.Context(), c.Param("tag")))
}
