package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumebuilder/internal/auth"
)

const userIDKey = "userID"

// TokenValidator is satisfied by *auth.AuthService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.TokenClaims, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "unauthorized"})
}

// AuthMiddleware checks the bearer token and stores the caller's user id.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the id stored by AuthMiddleware.
func UserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}
