package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidTier          = errors.New("invalid_tier")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
)

// ReasonLimitReached explains a denied quota decision.
const ReasonLimitReached = "order_limit_reached"

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed      bool
	Reason       string
	Subscription Subscription
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// CheckQuota lazily creates a free-tier subscription on first access and
	// applies billing-period rollover before deciding.
	CheckQuota(ctx context.Context, tenantID snowflake.ID) (Decision, error)
	// RecordOrder increments the period counter by exactly one. The worker
	// calls it once per successfully persisted order.
	RecordOrder(ctx context.Context, tenantID snowflake.ID) error
	// MarkQuotaExceededNotified stamps the once-per-period exceeded notice.
	MarkQuotaExceededNotified(ctx context.Context, tenantID snowflake.ID) error

	// Lifecycle operations invoked by the billing collaborator.
	UpdateTier(ctx context.Context, tenantID snowflake.ID, tier Tier) (Subscription, error)
	CancelSubscription(ctx context.Context, tenantID snowflake.ID) (Subscription, error)
}

type Repository interface {
	FindByTenant(ctx context.Context, tenantID snowflake.ID) (*Subscription, error)
	Insert(ctx context.Context, sub *Subscription) error
	// Rollover atomically resets the counter and period fields.
	Rollover(ctx context.Context, tenantID snowflake.ID, tier Tier, status Status, orderLimit int, periodStart, periodEnd, now time.Time) error
	// IncrementOrderCount adds one to the period counter in SQL so
	// concurrent workers never lose an increment.
	IncrementOrderCount(ctx context.Context, tenantID snowflake.ID, now time.Time) error
	SetTier(ctx context.Context, tenantID snowflake.ID, tier Tier, orderLimit int, status Status, now time.Time) error
	SetStatus(ctx context.Context, tenantID snowflake.ID, status Status, now time.Time) error
	SetQuotaExceededNotifiedAt(ctx context.Context, tenantID snowflake.ID, at time.Time) error
}
