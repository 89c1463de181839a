package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-tower/internal/auth"
	"finance-tower/internal/identity"
	"finance-tower/pkg/logger"
)

// MembershipResolver answers which role a user holds in a project.
// It returns identity.ErrNotMember for outsiders.
type MembershipResolver interface {
	ProjectRole(ctx context.Context, projectID, userID string) (string, error)
}

// RequireProjectMember enforces project isolation: the authenticated user must
// belong to the project named by the :project_id route param. The resolved
// role is stored in the request context for RequireAnyRole.
func RequireProjectMember(members MembershipResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}
		pid := c.Param("project_id")
		if pid == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "project_id required"})
			return
		}

		role, err := members.ProjectRole(c.Request.Context(), pid, uid)
		if errors.Is(err, identity.ErrNotMember) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if err != nil {
			logger.FromGin(c).Error("membership lookup failed", "project_id", pid, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !IsKnownRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Request = c.Request.WithContext(auth.WithProjectRole(c.Request.Context(), pid, role))
		c.Set("role", role)
		c.Next()
	}
}

// RequireAnyRole allows access if the caller's project role is one of allowed.
// Use it after RequireProjectMember in the chain.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireOwner guards budget changes, approvals and payouts.
func RequireOwner() gin.HandlerFunc { return RequireAnyRole(RoleOwner) }
