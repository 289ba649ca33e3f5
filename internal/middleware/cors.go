package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultClientURL is the origin allowed when none is configured.
const DefaultClientURL = "http://localhost:3000"

// CORSMiddleware allows the configured web client origin to call the API.
func CORSMiddleware(clientURL string) gin.HandlerFunc {
	if clientURL == "" {
		clientURL = DefaultClientURL
	}
	return cors.New(cors.Config{
		AllowOrigins:     []string{clientURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
