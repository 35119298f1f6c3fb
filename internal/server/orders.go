package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/pkg/tenantctx"
)

type orderResponse struct {
	ID                 string                  `json:"id"`
	SourceOrderID      string                  `json:"source_order_id"`
	CustomerEmail      string                  `json:"customer_email"`
	CustomerName       string                  `json:"customer_name,omitempty"`
	TotalPrice         float64                 `json:"total_price"`
	Currency           string                  `json:"currency,omitempty"`
	SourceCreatedAt    time.Time               `json:"source_created_at"`
	IsFlagged          bool                    `json:"is_flagged"`
	FlaggedAt          *time.Time              `json:"flagged_at,omitempty"`
	DuplicateOfOrderID *string                 `json:"duplicate_of_order_id,omitempty"`
	MatchReason        *string                 `json:"match_reason,omitempty"`
	MatchConfidence    int                     `json:"match_confidence"`
	ResolvedAt         *time.Time              `json:"resolved_at,omitempty"`
	ResolvedBy         *orderdomain.ResolvedBy `json:"resolved_by,omitempty"`
}

func toOrderResponse(o *orderdomain.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID.String(),
		SourceOrderID:   o.SourceOrderID,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		SourceCreatedAt: o.SourceCreatedAt,
		IsFlagged:       o.IsFlagged,
		FlaggedAt:       o.FlaggedAt,
		MatchReason:     o.MatchReason,
		MatchConfidence: o.MatchConfidence,
		ResolvedAt:      o.ResolvedAt,
		ResolvedBy:      o.ResolvedBy,
	}
	if o.DuplicateOfOrderID != nil {
		id := o.DuplicateOfOrderID.String()
		resp.DuplicateOfOrderID = &id
	}
	return resp
}

func (s *Server) ListOrders(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		Flagged string `form:"flagged"`
		Limit   int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	orders, err := s.orderSvc.List(c.Request.Context(), tenantID, orderdomain.ListOrdersRequest{
		FlaggedOnly: strings.EqualFold(query.Flagged, "true"),
		Limit:       query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toOrderResponse(order)})
}

type resolveOrderRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func (s *Server) ResolveOrder(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req resolveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	by := orderdomain.ResolvedBy(strings.TrimSpace(req.ResolvedBy))
	if by == "" {
		by = orderdomain.ResolvedByManual
	}

	order, err := s.orderSvc.Resolve(c.Request.Context(), tenantID, id, by)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toOrderResponse(order)})
}
