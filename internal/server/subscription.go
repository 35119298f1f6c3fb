package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"github.com/orderguard/orderguard/pkg/tenantctx"
)

type subscriptionResponse struct {
	Tier               quotadomain.Tier   `json:"tier"`
	Status             quotadomain.Status `json:"status"`
	MonthlyOrderCount  int                `json:"monthly_order_count"`
	OrderLimit         int                `json:"order_limit"`
	BillingPeriodStart time.Time          `json:"billing_period_start"`
	BillingPeriodEnd   time.Time          `json:"billing_period_end"`
}

func toSubscriptionResponse(sub quotadomain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Tier:               sub.Tier,
		Status:             sub.Status,
		MonthlyOrderCount:  sub.MonthlyOrderCount,
		OrderLimit:         sub.OrderLimit,
		BillingPeriodStart: sub.BillingPeriodStart,
		BillingPeriodEnd:   sub.BillingPeriodEnd,
	}
}

func (s *Server) GetSubscription(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	// CheckQuota applies period rollover, so the response reflects the
	// current billing period rather than a stale one.
	decision, err := s.quotaSvc.CheckQuota(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(decision.Subscription)})
}

type updateTierRequest struct {
	Tier string `json:"tier"`
}

func (s *Server) UpdateSubscriptionTier(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.quotaSvc.UpdateTier(c.Request.Context(), tenantID, quotadomain.Tier(strings.TrimSpace(req.Tier)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(sub)})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sub, err := s.quotaSvc.CancelSubscription(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSubscriptionResponse(sub)})
}
