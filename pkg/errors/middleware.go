package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"audio-library/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Body is the uniform error payload
type Body struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Respond writes err as a uniform error body and aborts the chain
func Respond(c *gin.Context, err *AppError) {
	c.AbortWithStatusJSON(err.StatusCode, Body{Error: err.Message, Detail: err.Detail})
}

// ErrorHandler returns a middleware that catches and formats application errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := FromError(c.Errors.Last().Err)

		log := logger.FromContext(c)
		args := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		}
		if appErr.Cause != nil {
			args = append(args, "cause", appErr.Cause.Error())
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.Error("Request error", args...)
		} else {
			log.Warn("Request rejected", args...)
		}

		if c.Writer.Written() {
			return
		}
		Respond(c, appErr)
	}
}

// RecoveryWithLogger returns a middleware that recovers from any panics
// and logs the error with the request-scoped logger
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				logger.FromContext(c).Error("Panic recovered",
					"error", fmt.Sprintf("%v", r),
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				Respond(c, NewError(http.StatusInternalServerError, CodeServerPanic,
					"The server encountered an unexpected error"))
			}
		}()

		c.Next()
	}
}
