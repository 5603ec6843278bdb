package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
)

const (
	// ContextKeyUser is the Gin context key for the authenticated user.
	ContextKeyUser = "user"
	// ContextKeyToken is the Gin context key for the raw bearer token.
	ContextKeyToken = "token"
)

// SessionResolver resolves a bearer token to its user. *service.AuthService satisfies it.
type SessionResolver interface {
	GetCurrentSession(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth resolves the token from the Authorization header, or the
// ?token= query parameter for WebSocket upgrades which cannot send headers.
// The token must be the user's active session, so a login on another
// device signs this one out.
func RequireAuth(auth SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		user, err := auth.GetCurrentSession(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrSessionInvalidated):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			case errors.Is(err, service.ErrTokenInvalid):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			default:
				response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			}
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyToken, token)
		c.Request = c.Request.WithContext(model.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// GetUser retrieves the authenticated user from the Gin context.
func GetUser(c *gin.Context) *model.User {
	val, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := val.(*model.User)
	if !ok {
		return nil
	}
	return user
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
