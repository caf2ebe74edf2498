package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
	ReqLoggerKey = "reqLogger"
	// RequestIDHeader is echoed back so clients can quote it in bug reports.
	RequestIDHeader = "X-Request-ID"
)

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// RequestLogger attaches a logger carrying a request id to every request. An incoming
// X-Request-ID is reused when it parses as a UUID.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set(ReqLoggerKey, log.With("requestID", id))
		c.Next()
	}
}

// EnrichReqLoggerWithViewer annotates the request-scoped logger with the session and
// token subject stored by the auth middleware.
func EnrichReqLoggerWithViewer(c *gin.Context, reqLogger *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil || reqLogger == nil {
		return reqLogger
	}
	if v, ok := c.Get("sessionID"); ok {
		if id, ok2 := v.(string); ok2 && id != "" {
			reqLogger = reqLogger.With("sessionID", id)
		}
	}
	if v, ok := c.Get("subject"); ok {
		if sub, ok2 := v.(string); ok2 && sub != "" {
			reqLogger = reqLogger.With("subject", sub)
		}
	}
	return reqLogger
}
