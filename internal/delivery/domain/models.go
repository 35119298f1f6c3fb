// Package domain contains the append-only webhook delivery ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// WebhookDelivery records one inbound delivery attempt. Rows are only ever
// inserted; the (tenant_id, delivery_id) unique pair is the idempotency fence
// for the whole pipeline.
type WebhookDelivery struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	TenantID    snowflake.ID `gorm:"not null;uniqueIndex:idx_webhook_deliveries_tenant_delivery"`
	DeliveryID  string       `gorm:"type:text;not null;uniqueIndex:idx_webhook_deliveries_tenant_delivery"`
	Topic       string       `gorm:"type:text;not null"`
	ProcessedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
