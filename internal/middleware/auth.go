package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

const badFormatDescription = "Format is Authorization: Bearer [token]"

// TokenValidator is an interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(token string) (*types.TokenClaims, error)
}

// AuthMiddleware creates a middleware that validates bearer tokens. Failures
// are handed to ErrorHandler and the chain is aborted.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, service.AuthCredentialsRequired, "No authorization token was found", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[1] == "" {
			abortUnauthorized(c, service.AuthCredentialsBadFormat, badFormatDescription, nil)
			return
		}
		if !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, service.AuthCredentialsBadScheme, badFormatDescription, nil)
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		// Store user info in context
		c.Set(UserIDKey, claims.UserID())
		c.Set(UsernameKey, claims.PreferredUsername)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, description string, cause error) {
	_ = c.Error(service.UnauthorizedError(code, description, cause))
	c.Abort()
}

// UserID returns the authenticated owner set by AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
