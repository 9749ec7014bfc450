package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"sorteos-backend/internal/common/logger"
)

// Logger writes one access-log line per request. Paths in skip are not logged.
func Logger(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skipped[path]; ok {
			return
		}
		if raw != "" {
			path = path + "?" + redactQuery(raw)
		}

		event := logger.Info()
		if c.Writer.Status() >= 500 {
			event = logger.Warn()
		}

		event.
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("Request processed")
	}
}

// redactQuery hides the websocket token.
func redactQuery(raw string) string {
	q, err := url.ParseQuery(raw)
	if err != nil || !q.Has("token") {
		return raw
	}
	q.Set("token", "REDACTED")
	return q.Encode()
}
