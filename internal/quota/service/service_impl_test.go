package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/orderguard/orderguard/internal/clock"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"github.com/orderguard/orderguard/internal/quota/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (quotadomain.Service, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&quotadomain.Subscription{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		Log:   zap.NewNop(),
		Repo:  repository.Provide(conn),
		GenID: node,
		Clock: fake,
	})
	return svc, fake, node
}

func TestCheckQuota_InitializesFreeTier(t *testing.T) {
	svc, fake, node := newTestService(t)
	ctx := context.Background()
	tenantID := node.Generate()

	decision, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, quotadomain.TierFree, decision.Subscription.Tier)
	assert.Equal(t, quotadomain.StatusActive, decision.Subscription.Status)
	assert.Equal(t, quotadomain.FreeTierOrderLimit, decision.Subscription.OrderLimit)
	assert.Equal(t, 0, decision.Subscription.MonthlyOrderCount)
	assert.WithinDuration(t, fake.Now(), decision.Subscription.BillingPeriodStart, time.Second)
}

func TestCheckQuota_DeniesAtLimit(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	tenantID := node.Generate()

	_, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)

	for i := 0; i < quotadomain.FreeTierOrderLimit-1; i++ {
		require.NoError(t, svc.RecordOrder(ctx, tenantID))
	}

	// 49 recorded: the 50th order is still allowed
	decision, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	require.NoError(t, svc.RecordOrder(ctx, tenantID))

	// 50 recorded: the next order is denied
	decision, err = svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, quotadomain.ReasonLimitReached, decision.Reason)
}

func TestCheckQuota_PaidTierIsUnlimited(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	tenantID := node.Generate()

	sub, err := svc.UpdateTier(ctx, tenantID, quotadomain.TierPaid)
	require.NoError(t, err)
	assert.Equal(t, quotadomain.UnlimitedOrders, sub.OrderLimit)

	for i := 0; i < quotadomain.FreeTierOrderLimit+10; i++ {
		require.NoError(t, svc.RecordOrder(ctx, tenantID))
	}

	decision, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckQuota_RolloverResetsCounter(t *testing.T) {
	svc, fake, node := newTestService(t)
	ctx := context.Background()
	tenantID := node.Generate()

	_, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	for i := 0; i < quotadomain.FreeTierOrderLimit; i++ {
		require.NoError(t, svc.RecordOrder(ctx, tenantID))
	}
	require.NoError(t, svc.MarkQuotaExceededNotified(ctx, tenantID))

	decision, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	fake.Advance(quotadomain.BillingPeriodDays*24*time.Hour + time.Hour)

	decision, err = svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Subscription.MonthlyOrderCount)
	assert.Nil(t, decision.Subscription.QuotaExceededNotifiedAt)
	assert.Equal(t, quotadomain.TierFree, decision.Subscription.Tier)
}

func TestCancelSubscription_GracePeriodThenDowngrade(t *testing.T) {
	svc, fake, node := newTestService(t)
	ctx := context.Background()
	tenantID := node.Generate()

	_, err := svc.UpdateTier(ctx, tenantID, quotadomain.TierPaid)
	require.NoError(t, err)

	sub, err := svc.CancelSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, quotadomain.StatusCancelled, sub.Status)
	assert.Equal(t, quotadomain.TierPaid, sub.Tier)

	// Inside the paid period the cancelled subscription keeps its limits.
	decision, err := svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, quotadomain.UnlimitedOrders, decision.Subscription.OrderLimit)

	fake.Advance(quotadomain.BillingPeriodDays*24*time.Hour + time.Hour)

	decision, err = svc.CheckQuota(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, quotadomain.TierFree, decision.Subscription.Tier)
	assert.Equal(t, quotadomain.StatusActive, decision.Subscription.Status)
	assert.Equal(t, quotadomain.FreeTierOrderLimit, decision.Subscription.OrderLimit)
}

func TestUpdateTier_RejectsUnknownTier(t *testing.T) {
	svc, _, node := newTestService(t)
	_, err := svc.UpdateTier(context.Background(), node.Generate(), quotadomain.Tier("platinum"))
	assert.ErrorIs(t, err, quotadomain.ErrInvalidTier)
}

func TestCheckQuota_InvalidTenant(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CheckQuota(context.Background(), 0)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidTenant)
}
