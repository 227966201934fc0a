package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
)

// ErrorHandlerMiddleware converts panics and unhandled gin errors into the
// uniform failure envelope so raw errors never reach the caller.
func ErrorHandlerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Interface("panic", r).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("request panicked")
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					dto.Error("an unexpected error occurred"))
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			logger.Error().Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("unhandled request error")
			c.JSON(http.StatusInternalServerError, dto.Error(err.Error()))
		}
	}
}
