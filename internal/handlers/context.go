package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/weddingdesk/internal/models"
	"github.com/charlesng35/weddingdesk/internal/services"
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

// actorFromRequest captures who triggered a transition for the status trail.
func actorFromRequest(c *gin.Context, source string) services.Actor {
	if source == "" {
		source = models.ChangeSourcePublic
	}
	actor := services.Actor{Source: source}
	if c == nil || c.Request == nil {
		return actor
	}
	actor.ClientIP = c.ClientIP()
	actor.UserAgent = strings.TrimSpace(c.Request.UserAgent())
	return actor
}
