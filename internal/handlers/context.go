package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/filebridge/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actorName returns the authenticated actor, or "anonymous" when the request
// carries no identity.
func actorName(c *gin.Context) string {
	actor := strings.TrimSpace(middleware.ActorFromContext(c))
	if actor == "" {
		return "anonymous"
	}
	return actor
}
