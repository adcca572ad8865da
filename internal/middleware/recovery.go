package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/response"
)

// Recovery converts a handler panic into a 500 response instead of tearing
// down the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.GetLogger().WithFields(map[string]interface{}{
					"panic": r,
					"path":  c.Request.URL.Path,
				}).Error("Recovered from panic")
				response.InternalError(c, "Internal server error", "An unexpected error occurred")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ErrorHandler turns gin errors that no handler answered into a 500. A
// handler that already wrote its own error body is left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		logger.GetLogger().WithError(last.Err).WithField("path", c.Request.URL.Path).Error("Unhandled request error")

		if !c.Writer.Written() {
			response.InternalError(c, "Request failed", last.Error())
		}
	}
}
