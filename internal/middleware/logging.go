package middleware

import (
	"log/slog"

	ginlogger "github.com/FabienMht/ginslog/logger"
	ginrecovery "github.com/FabienMht/ginslog/recovery"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

// RequestID echoes the caller's X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

// RequestLogger writes one structured line per request at INFO, WARN for
// 4xx or ERROR for 5xx. It must run after RequestID.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return ginlogger.New(logger,
		ginlogger.WithoutRequestID(),
		ginlogger.WithBlacklistPath([]string{"^/metrics$"}),
		ginlogger.WithCustomFields(requestFields),
	)
}

func requestFields(c *gin.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("request_id", c.GetString(requestIDKey))}
	if code := c.GetString(errorCodeKey); code != "" {
		attrs = append(attrs, slog.String("error_code", code))
	}
	if len(c.Errors) > 0 {
		attrs = append(attrs, slog.String("error", c.Errors.String()))
	}
	return attrs
}

// Recovery turns a handler panic into a 500 and logs it with the request id.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return ginrecovery.New(logger,
		ginrecovery.WithoutRequest(),
		ginrecovery.WithCustomFields(func(c *gin.Context) []slog.Attr {
			return []slog.Attr{slog.String("request_id", c.GetString(requestIDKey))}
		}),
	)
}
