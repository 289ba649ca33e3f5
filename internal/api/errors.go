package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pregnancy-guide-go/internal/core"
	"pregnancy-guide-go/internal/identity"
)

// respondError maps store and identity errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validation *core.ValidationError
	var authErr *identity.AuthError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid input", Details: validation.Error()})
	case errors.Is(err, core.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Please sign in to continue"})
	case errors.Is(err, core.ErrChecklistItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Checklist item not found"})
	case errors.Is(err, core.ErrStoreClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Service is shutting down"})
	case errors.As(err, &authErr):
		c.JSON(authStatusCode(authErr.Kind), ErrorResponse{Error: core.AuthErrorMessage(err)})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "The profile service did not respond in time"})
	default:
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Could not sync your profile", Details: err.Error()})
	}
}

func authStatusCode(kind identity.ErrorKind) int {
	switch kind {
	case identity.KindInvalidCredentials:
		return http.StatusBadRequest
	case identity.KindEmailInUse:
		return http.StatusConflict
	case identity.KindWrongCredentials:
		return http.StatusUnauthorized
	case identity.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
}
