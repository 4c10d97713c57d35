package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

// Recovery converts panics into a 500 envelope. The log entry names the route
// template and, for admin routes, the application being handled; the raw
// query string is left out because applicant links carry tokens there.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.Any("error", r),
				zap.Stack("stack"),
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, zap.String("application_id", id))
			}
			logger.WithModule("http").Error("handler panic", fields...)

			if !c.Writer.Written() {
				response.Error(c, errors.ErrInternalServer)
			}
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage(fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}
