package middleware

import (
	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Identity extracts the authenticated principal from trusted headers set by
// the upstream auth layer and attaches it to the request context. Requests
// without a principal are rejected before reaching any handler.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		role := c.GetHeader(HeaderUserRole)

		if userID == "" || role == "" {
			err := errutil.Unauthorized("missing identity", nil)
			_ = c.Error(err)
			c.Abort()
			return
		}

		id := identity.Identity{ID: userID, Role: identity.Role(role)}
		c.Request = c.Request.WithContext(identity.NewContext(c.Request.Context(), id))
		c.Next()
	}
}
