package server

import (
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"quantdash/internal/metrics"
	"quantdash/internal/trace"
)

const requestIDHeader = "X-Request-ID"

var safeRequestID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// requestID puts a request ID into the request context, reusing a sane
// incoming X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !safeRequestID.MatchString(id) {
			id = trace.NewRequestID()
		}
		c.Request = c.Request.WithContext(trace.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		trace.Logf(c.Request.Context(), "[INFO] %s %s %d %v %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond), c.ClientIP())
	}
}

func observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Writer.Status(), start)
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		trace.Logf(c.Request.Context(), "[ERROR] panic serving %s: %v", c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "internal server error",
			"request_id": trace.RequestID(c.Request.Context()),
		})
	})
}
