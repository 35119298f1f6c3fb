package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	deliverydomain "github.com/orderguard/orderguard/internal/delivery/domain"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/internal/queue"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"github.com/orderguard/orderguard/internal/webhook"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, webhook.ErrMissingSignature),
		errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, orderdomain.ErrNotFlagged):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "order is not flagged",
		}
	case errors.Is(err, queue.ErrNotDead):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "job is not dead-lettered",
		}
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, quotadomain.ErrSubscriptionNotFound),
		errors.Is(err, queue.ErrJobNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, orderdomain.ErrInvalidTenant),
		errors.Is(err, orderdomain.ErrInvalidResolvedBy),
		errors.Is(err, deliverydomain.ErrInvalidDeliveryID),
		errors.Is(err, quotadomain.ErrInvalidTier),
		errors.Is(err, queue.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	}
	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
