package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/filebridge/internal/auth"
	"github.com/charlesng35/filebridge/internal/permissions"
	"github.com/charlesng35/filebridge/pkg/errors"
	"github.com/charlesng35/filebridge/pkg/response"
)

// RequireScope rejects authenticated requests whose token lacks the given
// scope. Requests that carry no claims pass through untouched, so open
// deployments are unaffected.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(CtxClaimsKey)
		if !exists {
			c.Next()
			return
		}

		claims, ok := value.(*iauth.Claims)
		if !ok || !permissions.Allows(claims.Scope, scope) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
