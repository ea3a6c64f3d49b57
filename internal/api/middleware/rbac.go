package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stationhub/internal/models"
)

// RequireRole lets a request through when the caller's role is one of
// roles. Admins pass every check. Must run after RequireAuth, which puts
// the role on the context.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles)+1)
	allowed[models.RoleAdmin] = struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, exists := c.Get(ContextUserRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role context missing"})
			return
		}

		role, _ := v.(string)
		if _, ok := allowed[role]; ok {
			c.Next()
			return
		}

		uid, _ := c.Get(ContextUserID)
		slog.Info("role denied",
			"role", role,
			"user_id", uid,
			"path", c.FullPath(),
			"request_id", c.GetString(ContextRequestID))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Forbidden: You lack the required permissions.",
		})
	}
}

// RequireEditor guards station curation: create, edit, delete, rescoring
// and feedback triage.
func RequireEditor() gin.HandlerFunc {
	return RequireRole(models.RoleEditor)
}
