// Package handler contains the HTTP controllers.
package handler

import (
	"errors"
	"net/http"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/service"

	"github.com/gin-gonic/gin"
)

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondServiceError writes err with the status its sentinel maps to.
func respondServiceError(c *gin.Context, err error) {
	respondError(c, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnsupportedType),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrEmptyQuery),
		errors.Is(err, service.ErrInvalidSearch),
		errors.Is(err, service.ErrPathMismatch),
		errors.Is(err, service.ErrNoContent),
		errors.Is(err, service.ErrMissingEmail):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// currentUser returns the user stored by the auth middleware.
func currentUser(c *gin.Context) *model.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	respondOK(c, "ok", nil)
}
