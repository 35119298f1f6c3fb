package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidOrder      = errors.New("invalid_order")
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrOrderExists       = errors.New("order_already_exists")
	ErrNotFlagged        = errors.New("order_not_flagged")
	ErrInvalidResolvedBy = errors.New("invalid_resolved_by")
)

type ListOrdersRequest struct {
	FlaggedOnly bool
	Limit       int
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// CreateEvaluated persists an order after the duplicate check ran. It
	// returns ErrOrderExists when the (tenant, source order) pair is already
	// persisted; callers treat that as a no-op success.
	CreateEvaluated(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, tenantID, id snowflake.ID) (*Order, error)
	GetBySourceOrderID(ctx context.Context, tenantID snowflake.ID, sourceOrderID string) (*Order, error)
	FindCandidates(ctx context.Context, tenantID snowflake.ID, email, normalizedPhone string, since time.Time) ([]Order, error)
	List(ctx context.Context, tenantID snowflake.ID, req ListOrdersRequest) ([]Order, error)
	// Resolve transitions Flagged -> Resolved. Resolving a never-flagged or
	// already-resolved order fails with ErrNotFlagged.
	Resolve(ctx context.Context, tenantID, id snowflake.ID, by ResolvedBy) (*Order, error)
}
