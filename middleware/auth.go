package middleware

import (
	"errors"
	"net/http"
	"strings"

	"listing-service/providers"

	"github.com/gin-gonic/gin"
)

// Context keys set by PiAuth.
const (
	UserContextKey     = "piUid"
	UsernameContextKey = "piUsername"
)

// PiAuth verifies the caller's Pi access token against the platform and
// stores the resolved identity in the request context. Every mutating route
// sits behind this middleware.
func PiAuth(verifier providers.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization header"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := verifier.VerifyAccessToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, providers.ErrProviderUnavailable) {
				c.JSON(http.StatusBadGateway, gin.H{"error": "Identity verification unavailable"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Pi token"})
			}
			c.Abort()
			return
		}

		c.Set(UserContextKey, user.UID)
		c.Set(UsernameContextKey, user.Username)
		c.Next()
	}
}

// GetPiUID extracts the authenticated Pi uid from the Gin context.
func GetPiUID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if uid, ok := val.(string); ok && uid != "" {
			return uid, nil
		}
	}
	return "", errors.New("pi uid not found in context")
}
