// Package middleware holds the gin middleware.
package middleware

import (
	"net/http"
	"strings"

	"muichiro-nexus/internal/service"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/token"

	"github.com/gin-gonic/gin"
)

// TokenVerifier checks an identity token.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*token.IdentityClaims, error)
}

// AuthMiddleware verifies the identity token from the Authorization header,
// or the "token" query parameter for websocket upgrades, and stores the
// resolved *model.User under "user" and the claims under "claims".
func AuthMiddleware(verifier TokenVerifier, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := verifier.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[Auth] token rejected: %v", err)
			abortUnauthorized(c)
			return
		}

		user, err := userService.Resolve(c.Request.Context(), claims.Subject, claims.Email)
		if err != nil {
			log.Errorf("[Auth] resolving user %s failed: %v", claims.Subject, err)
			abortUnauthorized(c)
			return
		}

		c.Set("user", user)
		c.Set("claims", claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return c.Query("token")
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
}
