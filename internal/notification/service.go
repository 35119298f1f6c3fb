// Package notification fans duplicate alerts out to the channels a tenant
// enabled. Delivery is best effort: failures are reported as warnings and
// never fail the pipeline job that triggered them.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/config"
	detectiondomain "github.com/orderguard/orderguard/internal/detection/domain"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/internal/providers/email"
	"github.com/orderguard/orderguard/internal/providers/slack"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Duplicate describes a flagged order for alerting.
type Duplicate struct {
	Order       *orderdomain.Order
	DuplicateOf *orderdomain.Order
	Confidence  int
	Reason      string
}

type Service interface {
	// NotifyDuplicate alerts the tenant's enabled channels when the match
	// confidence clears the notify threshold. Returned errors are per-channel
	// warnings; the caller logs them and moves on.
	NotifyDuplicate(ctx context.Context, settings *detectiondomain.Settings, dup Duplicate) []error

	// NotifyQuotaExceeded tells the tenant their free-tier order budget ran
	// out. Callers are responsible for the once-per-period guard.
	NotifyQuotaExceeded(ctx context.Context, tenantID snowflake.ID, sub *quotadomain.Subscription) error
}

type service struct {
	log     *zap.Logger
	emailer email.Provider
	slacker slack.Provider
	alertTo string
}

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Emailer email.Provider
	Slacker slack.Provider
}

func NewService(p ServiceParam) Service {
	return &service{
		log:     p.Log.Named("notification.service"),
		emailer: p.Emailer,
		slacker: p.Slacker,
		alertTo: strings.TrimSpace(p.Config.AlertEmailTo),
	}
}

func (s *service) NotifyDuplicate(ctx context.Context, settings *detectiondomain.Settings, dup Duplicate) []error {
	if settings == nil || dup.Order == nil || dup.DuplicateOf == nil {
		return nil
	}
	if dup.Confidence < settings.NotifyThreshold {
		return nil
	}

	var warnings []error
	for _, channel := range settings.NotifyChannels {
		switch channel {
		case detectiondomain.ChannelEmail:
			if err := s.sendDuplicateEmail(ctx, dup); err != nil {
				warnings = append(warnings, fmt.Errorf("email: %w", err))
			}
		case detectiondomain.ChannelSlack:
			if err := s.slacker.PostMessage(ctx, duplicateSlackMessage(dup)); err != nil {
				warnings = append(warnings, fmt.Errorf("slack: %w", err))
			}
		default:
			s.log.Warn("unknown notify channel", zap.String("channel", channel))
		}
	}
	return warnings
}

func (s *service) sendDuplicateEmail(ctx context.Context, dup Duplicate) error {
	if s.alertTo == "" {
		return nil
	}
	subject := fmt.Sprintf("Possible duplicate order %s", dup.Order.SourceOrderID)
	body := fmt.Sprintf(
		`<p>Order <strong>%s</strong> looks like a duplicate of order <strong>%s</strong>.</p>
<p>Confidence: %d&#37;<br>Signals: %s</p>
<p>The new order has been flagged and tagged. Review it before fulfilment.</p>`,
		dup.Order.SourceOrderID,
		dup.DuplicateOf.SourceOrderID,
		dup.Confidence,
		dup.Reason,
	)
	return s.emailer.Send(ctx, []string{s.alertTo}, subject, body)
}

func duplicateSlackMessage(dup Duplicate) string {
	return fmt.Sprintf(
		":warning: Order *%s* looks like a duplicate of *%s* (confidence %d%%, %s). It has been flagged for review.",
		dup.Order.SourceOrderID,
		dup.DuplicateOf.SourceOrderID,
		dup.Confidence,
		dup.Reason,
	)
}

func (s *service) NotifyQuotaExceeded(ctx context.Context, tenantID snowflake.ID, sub *quotadomain.Subscription) error {
	if s.alertTo == "" {
		s.log.Warn("quota exceeded but no alert recipient configured",
			zap.String("tenant_id", tenantID.String()),
		)
		return nil
	}
	subject := "Monthly order limit reached"
	body := fmt.Sprintf(
		`<p>Duplicate screening is paused: the free tier covers %d orders per billing period and that budget is spent.</p>
<p>New orders are accepted by your store as usual but are no longer checked for duplicates until the period resets or the plan is upgraded.</p>`,
		sub.OrderLimit,
	)
	return s.emailer.Send(ctx, []string{s.alertTo}, subject, body)
}
