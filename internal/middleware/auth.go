package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/filebridge/internal/auditctx"
	iauth "github.com/charlesng35/filebridge/internal/auth"
	"github.com/charlesng35/filebridge/pkg/errors"
	"github.com/charlesng35/filebridge/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxActorKey  = "actor"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxActorKey, claims.Actor)
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			Name:      claims.Actor,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		c.Next()
	}
}

// ActorFromContext returns the authenticated actor name, or an empty string
// for unauthenticated requests.
func ActorFromContext(c *gin.Context) string {
	return c.GetString(CtxActorKey)
}
