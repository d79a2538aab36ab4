package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"smart-coop/internal/auth"
	"smart-coop/internal/models"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	CurrentUserKey  = "currentUser"
	CurrentTokenKey = "currentToken"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*models.User, *auth.Claims, error)
}

// AuthMiddleware runs the gate on the bearer token and stores the user
// and raw token in the context.
func AuthMiddleware(gate Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c)

		user, _, err := gate.Authenticate(c.Request.Context(), tokenStr)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrSessionExpired):
			util.Error(c, http.StatusUnauthorized, util.CodeSessionExpired, "session expired, please log in again")
			c.Abort()
			return
		case errors.Is(err, auth.ErrMissingToken):
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "authentication required")
			c.Abort()
			return
		case errors.Is(err, auth.ErrUnauthenticated):
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "please log in again")
			c.Abort()
			return
		default:
			logger.Error("authenticate request", "path", c.Request.URL.Path, "error", err)
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "internal error")
			c.Abort()
			return
		}

		c.Set(CurrentUserKey, user)
		c.Set(CurrentTokenKey, tokenStr)
		c.Next()
	}
}

// BearerToken reads "Authorization: Bearer <t>", falling back to the
// ?token= query parameter for links that cannot set headers (exports).
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(CurrentTokenKey)
}

// RequireRole rejects authenticated users lacking role with 403.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "authentication required")
			c.Abort()
			return
		}
		if user.Role != role {
			util.Error(c, http.StatusForbidden, util.CodeForbidden, "access denied")
			c.Abort()
			return
		}
		c.Next()
	}
}
