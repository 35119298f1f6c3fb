package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) quotadomain.Repository {
	return &repo{db: db}
}

func (r *repo) FindByTenant(ctx context.Context, tenantID snowflake.ID) (*quotadomain.Subscription, error) {
	var sub quotadomain.Subscription
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repo) Insert(ctx context.Context, sub *quotadomain.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repo) Rollover(ctx context.Context, tenantID snowflake.ID, tier quotadomain.Tier, status quotadomain.Status, orderLimit int, periodStart, periodEnd, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET tier = ?,
		     status = ?,
		     order_limit = ?,
		     monthly_order_count = 0,
		     billing_period_start = ?,
		     billing_period_end = ?,
		     quota_exceeded_notified_at = NULL,
		     updated_at = ?
		 WHERE tenant_id = ?`,
		tier,
		status,
		orderLimit,
		periodStart,
		periodEnd,
		now,
		tenantID,
	).Error
}

func (r *repo) IncrementOrderCount(ctx context.Context, tenantID snowflake.ID, now time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET monthly_order_count = monthly_order_count + 1,
		     updated_at = ?
		 WHERE tenant_id = ?`,
		now,
		tenantID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return quotadomain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repo) SetTier(ctx context.Context, tenantID snowflake.ID, tier quotadomain.Tier, orderLimit int, status quotadomain.Status, now time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET tier = ?, order_limit = ?, status = ?, updated_at = ?
		 WHERE tenant_id = ?`,
		tier,
		orderLimit,
		status,
		now,
		tenantID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return quotadomain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repo) SetStatus(ctx context.Context, tenantID snowflake.ID, status quotadomain.Status, now time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, updated_at = ?
		 WHERE tenant_id = ?`,
		status,
		now,
		tenantID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return quotadomain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repo) SetQuotaExceededNotifiedAt(ctx context.Context, tenantID snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET quota_exceeded_notified_at = COALESCE(quota_exceeded_notified_at, ?),
		     updated_at = ?
		 WHERE tenant_id = ?`,
		at,
		at,
		tenantID,
	).Error
}
