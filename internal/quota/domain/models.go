// Package domain contains the per-tenant subscription row backing the quota
// gate.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is the billing tier of a tenant.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Status is the subscription lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

const (
	// FreeTierOrderLimit caps processed orders per billing period on the
	// free tier.
	FreeTierOrderLimit = 50
	// UnlimitedOrders disables the quota check.
	UnlimitedOrders = -1
	// BillingPeriodDays is the rolling quota window length.
	BillingPeriodDays = 30
)

// Subscription is one row per tenant, mutated by the quota gate on every
// processed order and on period rollover.
type Subscription struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex"`

	Tier   Tier   `gorm:"type:text;not null;default:free"`
	Status Status `gorm:"type:text;not null;default:active"`

	MonthlyOrderCount int `gorm:"not null;default:0"`
	OrderLimit        int `gorm:"not null;default:50"`

	BillingPeriodStart time.Time `gorm:"not null"`
	BillingPeriodEnd   time.Time `gorm:"not null"`

	QuotaExceededNotifiedAt *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Unlimited reports whether the quota check is disabled for this tenant.
func (s Subscription) Unlimited() bool { return s.OrderLimit == UnlimitedOrders }
