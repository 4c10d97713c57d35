package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

func applicationID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
