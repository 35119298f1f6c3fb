package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Repo  orderdomain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	repo  orderdomain.Repository
	clock clock.Clock
}

func NewService(p ServiceParam) orderdomain.Service {
	return &Service{
		log:   p.Log.Named("order.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) CreateEvaluated(ctx context.Context, order *orderdomain.Order) error {
	if order == nil {
		return orderdomain.ErrInvalidOrder
	}
	if order.TenantID == 0 {
		return orderdomain.ErrInvalidTenant
	}
	if strings.TrimSpace(order.SourceOrderID) == "" {
		return orderdomain.ErrInvalidOrder
	}
	if order.IsFlagged && order.FlaggedAt == nil {
		now := s.clock.Now()
		order.FlaggedAt = &now
	}

	inserted, err := s.repo.Insert(ctx, order)
	if err != nil {
		return err
	}
	if !inserted {
		return orderdomain.ErrOrderExists
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, tenantID, id snowflake.ID) (*orderdomain.Order, error) {
	if tenantID == 0 {
		return nil, orderdomain.ErrInvalidTenant
	}
	order, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) GetBySourceOrderID(ctx context.Context, tenantID snowflake.ID, sourceOrderID string) (*orderdomain.Order, error) {
	if tenantID == 0 {
		return nil, orderdomain.ErrInvalidTenant
	}
	return s.repo.FindBySourceOrderID(ctx, tenantID, strings.TrimSpace(sourceOrderID))
}

func (s *Service) FindCandidates(ctx context.Context, tenantID snowflake.ID, email, normalizedPhone string, since time.Time) ([]orderdomain.Order, error) {
	if tenantID == 0 {
		return nil, orderdomain.ErrInvalidTenant
	}
	return s.repo.FindCandidates(ctx, tenantID, email, normalizedPhone, since)
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, req orderdomain.ListOrdersRequest) ([]orderdomain.Order, error) {
	if tenantID == 0 {
		return nil, orderdomain.ErrInvalidTenant
	}
	return s.repo.List(ctx, tenantID, req.FlaggedOnly, req.Limit)
}

func (s *Service) Resolve(ctx context.Context, tenantID, id snowflake.ID, by orderdomain.ResolvedBy) (*orderdomain.Order, error) {
	if tenantID == 0 {
		return nil, orderdomain.ErrInvalidTenant
	}
	if !by.Valid() {
		return nil, orderdomain.ErrInvalidResolvedBy
	}

	now := s.clock.Now()
	updated, err := s.repo.MarkResolved(ctx, tenantID, id, by, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		order, err := s.repo.FindByID(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, orderdomain.ErrOrderNotFound
		}
		return nil, orderdomain.ErrNotFlagged
	}

	s.log.Info("order resolved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("order_id", id.String()),
		zap.String("resolved_by", string(by)),
	)
	return s.repo.FindByID(ctx, tenantID, id)
}
