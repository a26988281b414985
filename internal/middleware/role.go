package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/basket-lsat/backend/pkg/response"
)

// MembershipChecker reports whether a user has paid materials access.
type MembershipChecker interface {
	HasActiveMembership(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireMembership returns a middleware that gates the materials area.
// Admins pass without a membership check; everyone else must have an active
// membership. Membership is read from the database on each request so a
// just-completed checkout takes effect without re-login.
func RequireMembership(checker MembershipChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if role, _ := roleVal.(string); role == "admin" {
			c.Next()
			return
		}
		idVal, ok := c.Get(ContextUserID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		userID, ok := idVal.(uuid.UUID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		active, err := checker.HasActiveMembership(c.Request.Context(), userID)
		if err != nil {
			response.Internal(c, "failed to check membership")
			c.Abort()
			return
		}
		if !active {
			response.Forbidden(c, "materials access requires an active membership")
			c.Abort()
			return
		}
		c.Next()
	}
}
