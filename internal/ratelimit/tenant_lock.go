package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyTenantEvaluation = "orders:evaluate:lock:%s"

// TenantEvaluationLimiter serializes order evaluation per tenant so two
// workers do not score concurrent orders against stale candidate sets. The
// lock is best effort: without redis configured, evaluation proceeds
// unserialized.
type TenantEvaluationLimiter struct {
	enabled bool
	locker  *Locker
	holder  *config.PipelineConfigHolder
}

func NewTenantEvaluationLimiter(cfg config.Config, holder *config.PipelineConfigHolder) *TenantEvaluationLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &TenantEvaluationLimiter{
		enabled: true,
		locker:  NewLocker(client),
		holder:  holder,
	}
}

func (l *TenantEvaluationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *TenantEvaluationLimiter) TryLockTenant(ctx context.Context, tenantID snowflake.ID) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyTenantEvaluation, tenantID.String())
	return l.locker.TryLock(ctx, key, l.holder.Current().TenantLockTTL)
}

func (l *TenantEvaluationLimiter) ReleaseTenant(ctx context.Context, tenantID snowflake.ID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyTenantEvaluation, tenantID.String())
	return l.locker.Release(ctx, key, token)
}
