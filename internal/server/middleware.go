package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/orderguard/orderguard/pkg/tenantctx"
	"go.uber.org/zap"
)

// HeaderTenant identifies the acting tenant on API and webhook requests.
const HeaderTenant = "X-Tenant-ID"

// RequestLogger logs each request with a correlation ID and safe fields.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)

		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		if strings.EqualFold(route, "/metrics") || strings.EqualFold(route, "/healthz") {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.String("error", lastErr.Err.Error()))
		}

		if status >= http.StatusInternalServerError {
			log.Error("http_request", fields...)
		} else {
			log.Info("http_request", fields...)
		}
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header("X-Request-Id", requestID)
	return requestID
}

// TenantRequired parses the tenant header and injects it into the request
// context. Requests without a valid tenant are rejected.
func TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := tenantFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(tenantctx.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func tenantFromRequest(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderTenant))
	if raw == "" {
		return 0, ErrUnauthorized
	}
	tenantID, err := snowflake.ParseString(raw)
	if err != nil || tenantID == 0 {
		return 0, ErrUnauthorized
	}
	return tenantID, nil
}
