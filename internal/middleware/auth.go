package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/servehub/internal/storage"
)

// Context keys set by the middleware below.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// TokenValidator returns the user id a token was issued for.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// RoleLookup loads a user's role.
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
}

// AuthMiddleware creates a gin.HandlerFunc that acts as our "security guard".
// Every protected route derives the caller from the Bearer token, never from the request body.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token format (must be Bearer)"})
			return
		}

		// 2. --- Validate Token ---
		userID, err := tokens.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}

		// 3. --- Success ---
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// RequireRole must run AFTER AuthMiddleware. It queries the caller's role and
// lets the request through only when it is one of roles.
func RequireRole(users RoleLookup, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get userID from AuthMiddleware
		userID := c.GetString(ContextUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User ID not found in context (AuthMiddleware must run first)"})
			return
		}

		// 2. Query DB for user's role
		role, err := users.GetUserRole(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid user"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Database error checking role"})
			return
		}

		// 3. Check permission
		for _, allowed := range roles {
			if role == allowed {
				c.Set(ContextUserRole, role)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Access denied: " + strings.Join(roles, " or ") + " role required"})
	}
}
