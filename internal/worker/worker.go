// Package worker consumes the orders-create queue and runs the duplicate
// detection pipeline for each delivery.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	deliverydomain "github.com/orderguard/orderguard/internal/delivery/domain"
	detectiondomain "github.com/orderguard/orderguard/internal/detection/domain"
	"github.com/orderguard/orderguard/internal/detection/matcher"
	"github.com/orderguard/orderguard/internal/enrichment"
	"github.com/orderguard/orderguard/internal/notification"
	obsmetrics "github.com/orderguard/orderguard/internal/observability/metrics"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/internal/queue"
	"github.com/orderguard/orderguard/internal/ratelimit"
	"github.com/orderguard/orderguard/internal/tagging"
	"github.com/orderguard/orderguard/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"

	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
)

type Worker struct {
	log       *zap.Logger
	clock     clock.Clock
	genID     *snowflake.Node
	ledger    deliverydomain.Ledger
	orders    orderdomain.Service
	detection detectiondomain.Service
	quota     quotadomain.Service
	tagger    tagging.Service
	notifier  notification.Service
	enricher  enrichment.Client
	limiter   *ratelimit.TenantEvaluationLimiter
}

type WorkerParam struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	Ledger    deliverydomain.Ledger
	Orders    orderdomain.Service
	Detection detectiondomain.Service
	Quota     quotadomain.Service
	Tagger    tagging.Service
	Notifier  notification.Service
	Enricher  enrichment.Client
	Limiter   *ratelimit.TenantEvaluationLimiter `optional:"true"`
}

func New(p WorkerParam) *Worker {
	return &Worker{
		log:       p.Log.Named("worker.orders"),
		clock:     p.Clock,
		genID:     p.GenID,
		ledger:    p.Ledger,
		orders:    p.Orders,
		detection: p.Detection,
		quota:     p.Quota,
		tagger:    p.Tagger,
		notifier:  p.Notifier,
		enricher:  p.Enricher,
		limiter:   p.Limiter,
	}
}

// HandleOrderCreate processes one queued delivery. A nil return completes the
// job; duplicate deliveries, existing orders, and quota denials are all
// no-op successes so the queue never retries them.
func (w *Worker) HandleOrderCreate(ctx context.Context, job *queue.Job) error {
	var payload OrderJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	if payload.TenantID == 0 {
		return deliverydomain.ErrInvalidTenant
	}

	ctx = tenantctx.WithTenantID(ctx, payload.TenantID)
	log := w.log.With(
		zap.String("tenant_id", payload.TenantID.String()),
		zap.String("delivery_id", payload.DeliveryID),
	)

	po, err := parsePlatformOrder(payload.RawPayload)
	if err != nil {
		return fmt.Errorf("decode order payload: %w", err)
	}

	// Advisory per-tenant lock. Correctness rests on the unique constraints
	// and atomic counters underneath; the lock only narrows the window where
	// two simultaneous orders from one customer miss each other.
	if token, ok, lockErr := w.limiter.TryLockTenant(ctx, payload.TenantID); lockErr != nil {
		log.Warn("tenant lock unavailable, proceeding unserialized", zap.Error(lockErr))
	} else if !ok {
		log.Debug("tenant lock held elsewhere, proceeding unserialized")
	} else {
		defer func() {
			if releaseErr := w.limiter.ReleaseTenant(context.WithoutCancel(ctx), payload.TenantID, token); releaseErr != nil {
				log.Warn("tenant lock release failed", zap.Error(releaseErr))
			}
		}()
	}

	fresh, err := w.ledger.TryRecord(ctx, payload.TenantID, payload.DeliveryID, payload.Topic)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	if !fresh {
		obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeDuplicateNoop)
		log.Info("delivery already processed, skipping")
		return nil
	}

	existing, err := w.orders.GetBySourceOrderID(ctx, payload.TenantID, po.sourceOrderID())
	if err != nil && !errors.Is(err, orderdomain.ErrOrderNotFound) {
		return fmt.Errorf("lookup existing order: %w", err)
	}
	if existing != nil {
		obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeOrderExists)
		log.Info("order already persisted, skipping", zap.String("source_order_id", po.sourceOrderID()))
		return nil
	}

	decision, err := w.quota.CheckQuota(ctx, payload.TenantID)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}
	if !decision.Allowed {
		w.handleQuotaDenied(ctx, log, payload.TenantID, decision)
		return nil
	}

	order := buildOrder(w.genID.Generate(), payload.TenantID, po, w.clock.Now())
	w.enrichContact(ctx, log, payload, po, order)

	settings, err := w.detection.GetForTenant(ctx, payload.TenantID)
	if err != nil {
		return fmt.Errorf("load detection settings: %w", err)
	}

	since := w.clock.Now().Add(-time.Duration(settings.TimeWindowHours) * time.Hour)
	candidates, err := w.orders.FindCandidates(ctx, payload.TenantID, order.CustomerEmail, order.CustomerPhoneNormalized, since)
	if err != nil {
		return fmt.Errorf("find candidates: %w", err)
	}

	match := matcher.FindDuplicate(order, candidates, settings)
	if match != nil {
		reason := match.Reason()
		order.IsFlagged = true
		order.DuplicateOfOrderID = &match.Order.ID
		order.MatchReason = &reason
		order.MatchConfidence = match.Confidence
	}

	if err := w.orders.CreateEvaluated(ctx, order); err != nil {
		if errors.Is(err, orderdomain.ErrOrderExists) {
			// A concurrent attempt won the insert. The winner owns the
			// quota increment and the side effects.
			obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeOrderExists)
			log.Info("order persisted concurrently, skipping", zap.String("source_order_id", order.SourceOrderID))
			return nil
		}
		return fmt.Errorf("persist order: %w", err)
	}

	if match != nil {
		obsmetrics.Pipeline().IncOrderFlagged(match.Confidence)
		log.Info("order flagged as duplicate",
			zap.String("source_order_id", order.SourceOrderID),
			zap.String("duplicate_of", match.Order.ID.String()),
			zap.Int("confidence", match.Confidence),
			zap.String("reason", match.Reason()),
		)
		w.runSideEffects(ctx, log, payload, &settings, order, match)
	}

	// The order row exists either way now; a retry from here would no-op on
	// the uniqueness check without recording, so a failed increment is
	// logged rather than propagated.
	if err := w.quota.RecordOrder(ctx, payload.TenantID); err != nil {
		log.Error("quota increment failed after persist", zap.Error(err))
	}

	obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeCompleted)
	return nil
}

func (w *Worker) handleQuotaDenied(ctx context.Context, log *zap.Logger, tenantID snowflake.ID, decision quotadomain.Decision) {
	obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeQuotaDenied)
	log.Warn("order dropped, quota exceeded",
		zap.String("reason", decision.Reason),
		zap.Int("order_limit", decision.Subscription.OrderLimit),
	)

	if decision.Subscription.QuotaExceededNotifiedAt != nil {
		return
	}
	if err := w.notifier.NotifyQuotaExceeded(ctx, tenantID, &decision.Subscription); err != nil {
		obsmetrics.Pipeline().IncSideEffectFailure(obsmetrics.SideEffectNotify)
		log.Warn("quota exceeded notice failed", zap.Error(err))
		return
	}
	if err := w.quota.MarkQuotaExceededNotified(ctx, tenantID); err != nil {
		log.Warn("marking quota notice failed", zap.Error(err))
	}
}

// enrichContact fills missing email/phone from the platform customer record.
// Failures are swallowed; matching proceeds with whatever the payload had.
func (w *Worker) enrichContact(ctx context.Context, log *zap.Logger, payload OrderJobPayload, po *platformOrder, order *orderdomain.Order) {
	if order.CustomerEmail != "" && order.CustomerPhoneNormalized != "" {
		return
	}

	contact, err := w.enricher.FetchMissingContact(ctx, payload.TenantID, payload.AccessToken, po.customerID())
	if err != nil {
		obsmetrics.Pipeline().IncSideEffectFailure(obsmetrics.SideEffectEnrich)
		log.Warn("contact enrichment failed", zap.Error(err))
		return
	}
	if contact == nil {
		return
	}

	if order.CustomerEmail == "" && contact.Email != "" {
		order.CustomerEmail = contact.Email
	}
	if order.CustomerPhone == "" && contact.Phone != "" {
		order.CustomerPhone = contact.Phone
		order.CustomerPhoneNormalized = matcher.NormalizePhone(contact.Phone)
	}
}

// runSideEffects applies the external tag and notifications. Both are
// independent and best effort; neither can fail the job.
func (w *Worker) runSideEffects(ctx context.Context, log *zap.Logger, payload OrderJobPayload, settings *detectiondomain.Settings, order *orderdomain.Order, match *matcher.Match) {
	if err := w.tagger.Tag(ctx, payload.TenantID, payload.AccessToken, order.SourceOrderID, []string{tagging.DuplicateTag}); err != nil {
		obsmetrics.Pipeline().IncSideEffectFailure(obsmetrics.SideEffectTag)
		log.Warn("platform tagging failed", zap.Error(err))
	}

	warnings := w.notifier.NotifyDuplicate(ctx, settings, notification.Duplicate{
		Order:       order,
		DuplicateOf: match.Order,
		Confidence:  match.Confidence,
		Reason:      match.Reason(),
	})
	for _, warn := range warnings {
		obsmetrics.Pipeline().IncSideEffectFailure(obsmetrics.SideEffectNotify)
		log.Warn("duplicate notification failed", zap.Error(warn))
	}
}
