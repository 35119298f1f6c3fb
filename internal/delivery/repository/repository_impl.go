package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	deliverydomain "github.com/orderguard/orderguard/internal/delivery/domain"
	"gorm.io/gorm"
)

type ledger struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func Provide(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) deliverydomain.Ledger {
	return &ledger{db: db, genID: genID, clock: clk}
}

func (l *ledger) TryRecord(ctx context.Context, tenantID snowflake.ID, deliveryID, topic string) (bool, error) {
	if tenantID == 0 {
		return false, deliverydomain.ErrInvalidTenant
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return false, deliverydomain.ErrInvalidDeliveryID
	}

	query := `INSERT INTO webhook_deliveries (id, tenant_id, delivery_id, topic, processed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, delivery_id) DO NOTHING`
	if strings.EqualFold(l.db.Dialector.Name(), "mysql") {
		query = `INSERT IGNORE INTO webhook_deliveries (id, tenant_id, delivery_id, topic, processed_at)
		 VALUES (?, ?, ?, ?, ?)`
	}

	result := l.db.WithContext(ctx).Exec(
		query,
		l.genID.Generate(),
		tenantID,
		deliveryID,
		topic,
		l.clock.Now(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
