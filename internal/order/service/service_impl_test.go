package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/orderguard/orderguard/internal/clock"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/internal/order/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (orderdomain.Service, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&orderdomain.Order{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		Log:   zap.NewNop(),
		Repo:  repository.Provide(conn),
		Clock: fake,
	})
	return svc, fake, node
}

func seedOrder(t *testing.T, svc orderdomain.Service, node *snowflake.Node, tenantID snowflake.ID, sourceID string, mutate func(*orderdomain.Order)) *orderdomain.Order {
	t.Helper()
	order := &orderdomain.Order{
		ID:              node.Generate(),
		TenantID:        tenantID,
		SourceOrderID:   sourceID,
		CustomerEmail:   "jane@example.com",
		SourceCreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, svc.CreateEvaluated(context.Background(), order))
	return order
}

func TestCreateEvaluated_DuplicateSourceOrderIsConflict(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	seedOrder(t, svc, node, tenantID, "2001", nil)

	again := &orderdomain.Order{
		ID:              node.Generate(),
		TenantID:        tenantID,
		SourceOrderID:   "2001",
		CustomerEmail:   "jane@example.com",
		SourceCreatedAt: time.Now().UTC(),
	}
	err := svc.CreateEvaluated(context.Background(), again)
	assert.ErrorIs(t, err, orderdomain.ErrOrderExists)
}

func TestCreateEvaluated_SetsFlaggedAt(t *testing.T) {
	svc, fake, node := newTestService(t)
	tenantID := node.Generate()
	dupOf := node.Generate()
	reason := "same email, same phone"

	order := seedOrder(t, svc, node, tenantID, "2002", func(o *orderdomain.Order) {
		o.IsFlagged = true
		o.DuplicateOfOrderID = &dupOf
		o.MatchReason = &reason
		o.MatchConfidence = 100
	})

	got, err := svc.GetByID(context.Background(), tenantID, order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFlagged)
	require.NotNil(t, got.FlaggedAt)
	assert.WithinDuration(t, fake.Now(), *got.FlaggedAt, time.Second)
	assert.Equal(t, 100, got.MatchConfidence)
}

func TestResolve_FlaggedOrder(t *testing.T) {
	svc, fake, node := newTestService(t)
	tenantID := node.Generate()

	order := seedOrder(t, svc, node, tenantID, "2003", func(o *orderdomain.Order) {
		o.IsFlagged = true
		o.MatchConfidence = 70
	})

	resolved, err := svc.Resolve(context.Background(), tenantID, order.ID, orderdomain.ResolvedByManual)
	require.NoError(t, err)
	assert.False(t, resolved.IsFlagged)
	require.NotNil(t, resolved.ResolvedAt)
	assert.WithinDuration(t, fake.Now(), *resolved.ResolvedAt, time.Second)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, orderdomain.ResolvedByManual, *resolved.ResolvedBy)
}

func TestResolve_UnflaggedOrderFails(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	order := seedOrder(t, svc, node, tenantID, "2004", nil)

	_, err := svc.Resolve(context.Background(), tenantID, order.ID, orderdomain.ResolvedByManual)
	assert.ErrorIs(t, err, orderdomain.ErrNotFlagged)
}

func TestResolve_Twice(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	order := seedOrder(t, svc, node, tenantID, "2005", func(o *orderdomain.Order) {
		o.IsFlagged = true
	})

	_, err := svc.Resolve(context.Background(), tenantID, order.ID, orderdomain.ResolvedByTagRemoved)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), tenantID, order.ID, orderdomain.ResolvedByTagRemoved)
	assert.ErrorIs(t, err, orderdomain.ErrNotFlagged)
}

func TestResolve_UnknownOrder(t *testing.T) {
	svc, _, node := newTestService(t)
	_, err := svc.Resolve(context.Background(), node.Generate(), node.Generate(), orderdomain.ResolvedByManual)
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}

func TestResolve_InvalidResolvedBy(t *testing.T) {
	svc, _, node := newTestService(t)
	_, err := svc.Resolve(context.Background(), node.Generate(), node.Generate(), orderdomain.ResolvedBy("magic"))
	assert.ErrorIs(t, err, orderdomain.ErrInvalidResolvedBy)
}

func TestFindCandidates_OrderAndWindow(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	older := seedOrder(t, svc, node, tenantID, "3001", func(o *orderdomain.Order) {
		o.SourceCreatedAt = time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)
	})
	newer := seedOrder(t, svc, node, tenantID, "3002", func(o *orderdomain.Order) {
		o.SourceCreatedAt = time.Date(2025, 5, 31, 10, 0, 0, 0, time.UTC)
	})
	seedOrder(t, svc, node, tenantID, "3003", func(o *orderdomain.Order) {
		// outside the window
		o.SourceCreatedAt = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	})
	seedOrder(t, svc, node, tenantID, "3004", func(o *orderdomain.Order) {
		// different contact entirely
		o.CustomerEmail = "stranger@example.com"
		o.SourceCreatedAt = time.Date(2025, 5, 31, 11, 0, 0, 0, time.UTC)
	})

	since := time.Date(2025, 5, 29, 0, 0, 0, 0, time.UTC)
	candidates, err := svc.FindCandidates(context.Background(), tenantID, "jane@example.com", "", since)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, newer.SourceOrderID, candidates[0].SourceOrderID)
	assert.Equal(t, older.SourceOrderID, candidates[1].SourceOrderID)
}

func TestFindCandidates_MatchesPhoneWhenEmailDiffers(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	seedOrder(t, svc, node, tenantID, "3005", func(o *orderdomain.Order) {
		o.CustomerEmail = "a@example.com"
		o.CustomerPhoneNormalized = "15551234567"
	})

	since := time.Date(2025, 5, 29, 0, 0, 0, 0, time.UTC)
	candidates, err := svc.FindCandidates(context.Background(), tenantID, "b@example.com", "15551234567", since)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestListOrders_FlaggedOnly(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()

	seedOrder(t, svc, node, tenantID, "4001", nil)
	flagged := seedOrder(t, svc, node, tenantID, "4002", func(o *orderdomain.Order) {
		o.IsFlagged = true
	})

	orders, err := svc.List(context.Background(), tenantID, orderdomain.ListOrdersRequest{FlaggedOnly: true})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, flagged.SourceOrderID, orders[0].SourceOrderID)
}
