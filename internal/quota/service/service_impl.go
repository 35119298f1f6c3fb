package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"github.com/orderguard/orderguard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Repo  quotadomain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	repo  quotadomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) quotadomain.Service {
	return &Service{
		log:   p.Log.Named("quota.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CheckQuota(ctx context.Context, tenantID snowflake.ID) (quotadomain.Decision, error) {
	sub, err := s.ensureSubscription(ctx, tenantID)
	if err != nil {
		return quotadomain.Decision{}, err
	}

	now := s.clock.Now()
	if now.After(sub.BillingPeriodEnd) {
		sub, err = s.rollover(ctx, sub, now)
		if err != nil {
			return quotadomain.Decision{}, err
		}
	}

	if sub.Unlimited() {
		return quotadomain.Decision{Allowed: true, Subscription: *sub}, nil
	}
	if sub.MonthlyOrderCount < sub.OrderLimit {
		return quotadomain.Decision{Allowed: true, Subscription: *sub}, nil
	}
	return quotadomain.Decision{
		Allowed:      false,
		Reason:       quotadomain.ReasonLimitReached,
		Subscription: *sub,
	}, nil
}

func (s *Service) RecordOrder(ctx context.Context, tenantID snowflake.ID) error {
	if tenantID == 0 {
		return quotadomain.ErrInvalidTenant
	}
	return s.repo.IncrementOrderCount(ctx, tenantID, s.clock.Now())
}

func (s *Service) MarkQuotaExceededNotified(ctx context.Context, tenantID snowflake.ID) error {
	if tenantID == 0 {
		return quotadomain.ErrInvalidTenant
	}
	return s.repo.SetQuotaExceededNotifiedAt(ctx, tenantID, s.clock.Now())
}

func (s *Service) UpdateTier(ctx context.Context, tenantID snowflake.ID, tier quotadomain.Tier) (quotadomain.Subscription, error) {
	if tier != quotadomain.TierFree && tier != quotadomain.TierPaid {
		return quotadomain.Subscription{}, quotadomain.ErrInvalidTier
	}
	if _, err := s.ensureSubscription(ctx, tenantID); err != nil {
		return quotadomain.Subscription{}, err
	}

	limit := quotadomain.FreeTierOrderLimit
	if tier == quotadomain.TierPaid {
		limit = quotadomain.UnlimitedOrders
	}
	now := s.clock.Now()
	if err := s.repo.SetTier(ctx, tenantID, tier, limit, quotadomain.StatusActive, now); err != nil {
		return quotadomain.Subscription{}, err
	}

	s.log.Info("subscription tier updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("tier", string(tier)),
	)
	return s.mustRead(ctx, tenantID)
}

func (s *Service) CancelSubscription(ctx context.Context, tenantID snowflake.ID) (quotadomain.Subscription, error) {
	if _, err := s.ensureSubscription(ctx, tenantID); err != nil {
		return quotadomain.Subscription{}, err
	}

	// Cancellation keeps the current limits until the period ends; the
	// downgrade happens on the first quota check after that (grace period).
	if err := s.repo.SetStatus(ctx, tenantID, quotadomain.StatusCancelled, s.clock.Now()); err != nil {
		return quotadomain.Subscription{}, err
	}

	s.log.Info("subscription cancelled", zap.String("tenant_id", tenantID.String()))
	return s.mustRead(ctx, tenantID)
}

func (s *Service) ensureSubscription(ctx context.Context, tenantID snowflake.ID) (*quotadomain.Subscription, error) {
	if tenantID == 0 {
		return nil, quotadomain.ErrInvalidTenant
	}

	existing, err := s.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	sub := &quotadomain.Subscription{
		ID:                 s.genID.Generate(),
		TenantID:           tenantID,
		Tier:               quotadomain.TierFree,
		Status:             quotadomain.StatusActive,
		MonthlyOrderCount:  0,
		OrderLimit:         quotadomain.FreeTierOrderLimit,
		BillingPeriodStart: now,
		BillingPeriodEnd:   now.Add(quotadomain.BillingPeriodDays * 24 * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, sub); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByTenant(ctx, tenantID)
		}
		return nil, err
	}

	s.log.Info("free-tier subscription initialized",
		zap.String("tenant_id", tenantID.String()),
	)
	return sub, nil
}

func (s *Service) rollover(ctx context.Context, sub *quotadomain.Subscription, now time.Time) (*quotadomain.Subscription, error) {
	tier := sub.Tier
	status := sub.Status
	limit := sub.OrderLimit

	if sub.Status == quotadomain.StatusCancelled && sub.Tier == quotadomain.TierPaid {
		// Grace period is over: drop back to the free tier.
		tier = quotadomain.TierFree
		status = quotadomain.StatusActive
		limit = quotadomain.FreeTierOrderLimit
		s.log.Info("cancelled subscription downgraded to free tier",
			zap.String("tenant_id", sub.TenantID.String()),
		)
	}

	periodEnd := now.Add(quotadomain.BillingPeriodDays * 24 * time.Hour)
	if err := s.repo.Rollover(ctx, sub.TenantID, tier, status, limit, now, periodEnd, now); err != nil {
		return nil, err
	}
	return s.repo.FindByTenant(ctx, sub.TenantID)
}

func (s *Service) mustRead(ctx context.Context, tenantID snowflake.ID) (quotadomain.Subscription, error) {
	sub, err := s.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return quotadomain.Subscription{}, err
	}
	if sub == nil {
		return quotadomain.Subscription{}, quotadomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}
