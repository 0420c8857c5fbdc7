package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID is read from inbound requests and forwarded to the gateway.
const HeaderRequestID = "X-Request-Id"

const ginLoggerKey = "logger"

// quietPaths are polled by probes and scrapers; their summaries go to debug.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware tags every request with a request id, stores a request-scoped
// logger on both the gin and the request context, and logs one summary line
// when the handler chain returns.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderRequestID, rid)

		reqLogger := l.With(slog.String("request_id", rid))
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(WithRequestID(With(c.Request.Context(), reqLogger), rid))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			slog.String("client_ip", c.ClientIP()),
		}

		level := slog.LevelInfo
		switch {
		case len(c.Errors) > 0:
			level = slog.LevelError
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		case status >= 500:
			level = slog.LevelWarn
		case quietPaths[c.Request.URL.Path]:
			level = slog.LevelDebug
		}
		reqLogger.LogAttrs(context.Background(), level, "request", attrs...)
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
