package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"pregnancy-guide-go/internal/metrics"
	"pregnancy-guide-go/internal/middleware"
)

// Store is everything the routes need from the client state store.
// *core.Store satisfies it.
type Store interface {
	AuthActions
	ProfileActions
}

// RouteDeps carries the dependencies of SetupRoutes.
type RouteDeps struct {
	Store       Store
	Catalog     ContentLookup
	Logger      *zap.Logger
	AuthLimiter *middleware.RateLimiter // optional
	Gatherer    prometheus.Gatherer     // optional; enables GET /metrics
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is expected to be applied to the
// router before this is called.
func SetupRoutes(router *gin.Engine, deps RouteDeps) {
	contentHandler := NewContentHandler(deps.Catalog)
	authHandler := NewAuthHandler(deps.Store)
	profileHandler := NewProfileHandler(deps.Store, deps.Catalog)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/articles", contentHandler.ListArticles)
		apiV1.GET("/articles/:articleId", contentHandler.GetArticle)
		apiV1.GET("/weeks/:week/articles", contentHandler.ListArticlesForWeek)
		apiV1.GET("/tags", contentHandler.ListTags)
		apiV1.GET("/tags/:tag/articles", contentHandler.ListArticlesByTag)

		authGroup := apiV1.Group("/auth")
		if deps.AuthLimiter != nil {
			authGroup.Use(deps.AuthLimiter.Middleware())
		}
		{
			authGroup.POST("/signup", authHandler.SignUp)
			authGroup.POST("/signin", authHandler.SignIn)
			authGroup.POST("/signout", authHandler.SignOut)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
		}
		apiV1.GET("/session", authHandler.GetSession)

		// Everything under /me needs a signed-in session.
		meGroup := apiV1.Group("/me", middleware.RequireSession(deps.Store))
		{
			meGroup.GET("", profileHandler.GetProfile)
			meGroup.POST("/refresh", profileHandler.Refresh)
			meGroup.PUT("/due-date", profileHandler.UpdateDueDate)
			meGroup.GET("/week", profileHandler.GetWeek)
			meGroup.GET("/favorites", profileHandler.ListFavorites)
			meGroup.POST("/favorites/:articleId/toggle", profileHandler.ToggleFavorite)
			meGroup.POST("/checklist", profileHandler.AddChecklistItem)
			meGroup.PATCH("/checklist/:itemId", profileHandler.UpdateChecklistItem)
			meGroup.POST("/checklist/:itemId/toggle", profileHandler.ToggleChecklistItem)
			meGroup.DELETE("/checklist/:itemId", profileHandler.RemoveChecklistItem)
		}
	}

	if deps.Logger != nil {
		deps.Logger.Info("Routes registered", zap.Int("routes", len(router.Routes())))
	}
}
