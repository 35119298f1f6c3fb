package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/orderguard/orderguard/internal/queue"
	"github.com/orderguard/orderguard/internal/webhook"
	"github.com/orderguard/orderguard/internal/worker"
	"go.uber.org/zap"
)

// Webhook metadata headers set by the commerce platform.
const (
	HeaderDeliveryID    = "X-Webhook-Delivery-Id"
	HeaderTopic         = "X-Webhook-Topic"
	HeaderPlatformToken = "X-Platform-Token"
)

// HandleOrderCreateWebhook verifies the delivery and enqueues it. All
// processing happens in the worker; this handler only acknowledges receipt.
func (s *Server) HandleOrderCreateWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.verifier.Verify(body, c.GetHeader(webhook.SignatureHeader)); err != nil {
		AbortWithError(c, err)
		return
	}

	tenantID, err := tenantFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	deliveryID := strings.TrimSpace(c.GetHeader(HeaderDeliveryID))
	if deliveryID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	topic := strings.TrimSpace(c.GetHeader(HeaderTopic))
	if topic == "" {
		topic = "orders/create"
	}

	payload, err := json.Marshal(worker.OrderJobPayload{
		TenantID:    tenantID,
		DeliveryID:  deliveryID,
		Topic:       topic,
		AccessToken: strings.TrimSpace(c.GetHeader(HeaderPlatformToken)),
		RawPayload:  body,
	})
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}

	cfg := s.holder.Current()
	jobID, err := s.queue.Enqueue(c.Request.Context(), queue.OrdersCreateQueue, payload, queue.Options{
		RetryLimit: cfg.RetryLimit,
		RetryDelay: cfg.RetryDelay,
		ExpireIn:   cfg.ExpireIn,
	})
	if err != nil {
		s.log.Error("webhook enqueue failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
		AbortWithError(c, ErrInternal)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID.String()})
}
