package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hxbeeb/excalidraw/internal/auth"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/pkg/response"
)

// Context keys set by the auth middleware.
const (
	ContextUserID    = "user_id"
	ContextUserName  = "user_name"
	ContextUserEmail = "user_email"
)

// Auth verifies the bearer token on REST routes and stores the caller
// identity in the gin context.
func Auth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.ID)
		c.Set(ContextUserName, claims.Name)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// GetUserID returns the authenticated caller's user id.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetUserRef returns the authenticated caller's public identity.
func GetUserRef(c *gin.Context) domain.UserRef {
	return domain.UserRef{
		ID:    c.GetString(ContextUserID),
		Name:  c.GetString(ContextUserName),
		Email: c.GetString(ContextUserEmail),
	}
}
