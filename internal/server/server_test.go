package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/orderguard/orderguard/internal/clock"
	"github.com/orderguard/orderguard/internal/config"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	orderrepo "github.com/orderguard/orderguard/internal/order/repository"
	ordersvc "github.com/orderguard/orderguard/internal/order/service"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	quotarepo "github.com/orderguard/orderguard/internal/quota/repository"
	quotasvc "github.com/orderguard/orderguard/internal/quota/service"
	"github.com/orderguard/orderguard/internal/queue"
	"github.com/orderguard/orderguard/internal/queue/memqueue"
	"github.com/orderguard/orderguard/internal/webhook"
	"github.com/orderguard/orderguard/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-webhook-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type serverHarness struct {
	server   *Server
	queue    *memqueue.Queue
	orderSvc orderdomain.Service
	fake     *clock.FakeClock
	node     *snowflake.Node
	verifier *webhook.Verifier
}

func newServerHarness(t *testing.T) *serverHarness {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&orderdomain.Order{}, &quotadomain.Subscription{}))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{WebhookSecret: testSecret}

	q := memqueue.New(node)
	srv := NewServer(ServerParams{
		Gin:       NewEngine(cfg, log),
		Cfg:       cfg,
		Log:       log,
		Queue:     q,
		Inspector: q,
		OrderSvc:  ordersvc.NewService(ordersvc.ServiceParam{Log: log, Repo: orderrepo.Provide(conn), Clock: fake}),
		QuotaSvc:  quotasvc.NewService(quotasvc.ServiceParam{Log: log, Repo: quotarepo.Provide(conn), GenID: node, Clock: fake}),
		Holder:    config.NewStaticPipelineConfigHolder(config.DefaultPipelineConfig()),
	})

	return &serverHarness{
		server:   srv,
		queue:    q,
		orderSvc: srv.orderSvc,
		fake:     fake,
		node:     node,
		verifier: webhook.NewVerifier(testSecret),
	}
}

func (h *serverHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(rec, req)
	return rec
}

func (h *serverHarness) webhookRequest(tenantID snowflake.ID, deliveryID string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders/create", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, h.verifier.Sign(body))
	req.Header.Set(HeaderTenant, tenantID.String())
	req.Header.Set(HeaderDeliveryID, deliveryID)
	return req
}

func (h *serverHarness) seedFlaggedOrder(t *testing.T, tenantID snowflake.ID) *orderdomain.Order {
	t.Helper()
	reason := "same email, same name"
	order := &orderdomain.Order{
		ID:              h.node.Generate(),
		TenantID:        tenantID,
		SourceOrderID:   "1001",
		CustomerEmail:   "jane@example.com",
		CustomerName:    "Jane Doe",
		SourceCreatedAt: h.fake.Now(),
		IsFlagged:       true,
		MatchReason:     &reason,
		MatchConfidence: 70,
	}
	require.NoError(t, h.orderSvc.CreateEvaluated(context.Background(), order))
	return order
}

func TestWebhook_AcceptsSignedDelivery(t *testing.T) {
	h := newServerHarness(t)
	tenantID := h.node.Generate()
	body := []byte(`{"id": 1001, "email": "jane@example.com"}`)

	rec := h.do(h.webhookRequest(tenantID, "dlv-1", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	require.Equal(t, 1, h.queue.Pending(queue.OrdersCreateQueue))

	// the queued payload carries the delivery metadata and the raw body
	var payload worker.OrderJobPayload
	require.NoError(t, h.queue.Drain(context.Background(), queue.OrdersCreateQueue, func(_ context.Context, job *queue.Job) error {
		return json.Unmarshal(job.Payload, &payload)
	}))
	assert.Equal(t, tenantID, payload.TenantID)
	assert.Equal(t, "dlv-1", payload.DeliveryID)
	assert.Equal(t, "orders/create", payload.Topic)
	assert.JSONEq(t, string(body), string(payload.RawPayload))
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	h := newServerHarness(t)
	body := []byte(`{"id": 1001}`)

	req := h.webhookRequest(h.node.Generate(), "dlv-1", body)
	req.Header.Set(webhook.SignatureHeader, "AAAA")
	rec := h.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, h.queue.Pending(queue.OrdersCreateQueue))
}

func TestWebhook_RejectsMissingSignature(t *testing.T) {
	h := newServerHarness(t)
	body := []byte(`{"id": 1001}`)

	req := h.webhookRequest(h.node.Generate(), "dlv-1", body)
	req.Header.Del(webhook.SignatureHeader)
	rec := h.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_RequiresTenantHeader(t *testing.T) {
	h := newServerHarness(t)
	body := []byte(`{"id": 1001}`)

	req := h.webhookRequest(h.node.Generate(), "dlv-1", body)
	req.Header.Del(HeaderTenant)
	rec := h.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_RequiresDeliveryID(t *testing.T) {
	h := newServerHarness(t)
	body := []byte(`{"id": 1001}`)

	req := h.webhookRequest(h.node.Generate(), "dlv-1", body)
	req.Header.Del(HeaderDeliveryID)
	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RequiresTenantHeader(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolveOrder(t *testing.T) {
	h := newServerHarness(t)
	tenantID := h.node.Generate()
	order := h.seedFlaggedOrder(t, tenantID)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+order.ID.String()+"/resolve", bytes.NewBufferString(`{}`))
	req.Header.Set(HeaderTenant, tenantID.String())
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			ResolvedBy string     `json:"resolved_by"`
			ResolvedAt *time.Time `json:"resolved_at"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(orderdomain.ResolvedByManual), resp.Data.ResolvedBy)
	require.NotNil(t, resp.Data.ResolvedAt)

	// already resolved
	req = httptest.NewRequest(http.MethodPost, "/api/orders/"+order.ID.String()+"/resolve", bytes.NewBufferString(`{}`))
	req.Header.Set(HeaderTenant, tenantID.String())
	rec = h.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveOrder_NotFound(t *testing.T) {
	h := newServerHarness(t)
	tenantID := h.node.Generate()

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+h.node.Generate().String()+"/resolve", bytes.NewBufferString(`{}`))
	req.Header.Set(HeaderTenant, tenantID.String())
	rec := h.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSubscription_CreatesFreeTier(t *testing.T) {
	h := newServerHarness(t)
	tenantID := h.node.Generate()

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req.Header.Set(HeaderTenant, tenantID.String())
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data subscriptionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, quotadomain.TierFree, resp.Data.Tier)
	assert.Equal(t, 50, resp.Data.OrderLimit)
	assert.Zero(t, resp.Data.MonthlyOrderCount)
}

func TestUpdateSubscriptionTier(t *testing.T) {
	h := newServerHarness(t)
	tenantID := h.node.Generate()

	req := httptest.NewRequest(http.MethodPost, "/api/subscription/tier", bytes.NewBufferString(`{"tier": "paid"}`))
	req.Header.Set(HeaderTenant, tenantID.String())
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data subscriptionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, quotadomain.TierPaid, resp.Data.Tier)

	// unknown tier
	req = httptest.NewRequest(http.MethodPost, "/api/subscription/tier", bytes.NewBufferString(`{"tier": "platinum"}`))
	req.Header.Set(HeaderTenant, tenantID.String())
	rec = h.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDeadJobs_Empty(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/admin/queue/dead", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": []}`, rec.Body.String())
}
