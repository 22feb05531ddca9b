package middleware

import (
	"strings"

	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

var suspiciousURLPatterns = []string{
	"sql", "script", "javascript", "eval", "exec",
	"union", "select", "insert", "delete", "drop",
	"admin", "root", "password", "login",
}

const minUserAgentLength = 10

// SecurityLogger logs requests that look like probing. It never changes
// the response.
func SecurityLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("security")

	return func(c *gin.Context) {
		target := strings.ToLower(c.Request.URL.RequestURI())
		for _, pattern := range suspiciousURLPatterns {
			if strings.Contains(target, pattern) {
				metrics.SuspiciousRequests.WithLabelValues("url_pattern").Inc()
				log.Warn("suspicious request pattern",
					"client", c.ClientIP(),
					"url", c.Request.URL.RequestURI(),
					"pattern", pattern,
				)
				break
			}
		}

		if ua := c.Request.UserAgent(); len(ua) < minUserAgentLength {
			metrics.SuspiciousRequests.WithLabelValues("user_agent").Inc()
			log.Warn("suspicious user agent",
				"client", c.ClientIP(),
				"user_agent", ua,
			)
		}

		c.Next()
	}
}
