package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/pkg/logger"
)

// ContextUserKey is the gin context key holding the authenticated *models.User.
const ContextUserKey = "user"

// Resolver is the minimal interface the middleware depends on. It returns
// (nil, nil) for unauthenticated callers.
type Resolver interface {
	Resolve(ctx context.Context, authorization string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(res Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := res.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			logger.Errorf("auth middleware: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Set(ContextUserKey, u)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(res Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			u, err := res.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
			if err != nil {
				logger.Warnf("optional auth: %v", err)
			} else if u != nil {
				c.Set(ContextUserKey, u)
			}
		}
		c.Next()
	}
}

// RequireRole allows the request when the user holds one of roles
// (case-insensitive). It must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		for _, r := range roles {
			if strings.EqualFold(strings.TrimSpace(u.Role), r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// rateLimitKey prefers the authenticated user id and falls back to the client IP.
func rateLimitKey(c *gin.Context) string {
	if u := CurrentUser(c); u != nil && u.ID != "" {
		return "user:" + u.ID
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
