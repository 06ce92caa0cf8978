package handler

import (
	"net/http"

	"muichiro-nexus/internal/service"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/token"

	"github.com/gin-gonic/gin"
)

// UserHandler exposes identity sync and the caller's profile.
type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Sync upserts the caller from the verified token claims.
func (h *UserHandler) Sync(c *gin.Context) {
	v, _ := c.Get("claims")
	claims, ok := v.(*token.IdentityClaims)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.userService.Sync(c.Request.Context(), claims.Subject, claims.Email)
	if err != nil {
		log.Errorf("[UserHandler] sync of %s failed: %v", claims.Subject, err)
		respondServiceError(c, err)
		return
	}
	respondOK(c, "User synced", gin.H{"user": user})
}

func (h *UserHandler) Me(c *gin.Context) {
	respondOK(c, "Profile retrieved", gin.H{"user": currentUser(c)})
}
