package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) orderdomain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, order *orderdomain.Order) (bool, error) {
	db := r.db.WithContext(ctx)
	if strings.EqualFold(r.db.Dialector.Name(), "mysql") {
		db = db.Clauses(clause.Insert{Modifier: "IGNORE"})
	} else {
		db = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "source_order_id"}},
			DoNothing: true,
		})
	}
	result := db.Create(order)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, tenantID, id snowflake.ID) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindBySourceOrderID(ctx context.Context, tenantID snowflake.ID, sourceOrderID string) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_order_id = ?", tenantID, sourceOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindCandidates(ctx context.Context, tenantID snowflake.ID, email, normalizedPhone string, since time.Time) ([]orderdomain.Order, error) {
	conditions := make([]string, 0, 2)
	args := []any{tenantID, since}
	if email != "" {
		conditions = append(conditions, "LOWER(customer_email) = ?")
		args = append(args, strings.ToLower(email))
	}
	if normalizedPhone != "" {
		conditions = append(conditions, "customer_phone_normalized = ?")
		args = append(args, normalizedPhone)
	}
	if len(conditions) == 0 {
		return nil, nil
	}

	var orders []orderdomain.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_created_at >= ?", args[:2]...).
		Where(strings.Join(conditions, " OR "), args[2:]...).
		Order("source_created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) List(ctx context.Context, tenantID snowflake.ID, flaggedOnly bool, limit int) ([]orderdomain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if flaggedOnly {
		query = query.Where("is_flagged = ?", true)
	}
	var orders []orderdomain.Order
	err := query.Order("source_created_at DESC, id DESC").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) MarkResolved(ctx context.Context, tenantID, id snowflake.ID, by orderdomain.ResolvedBy, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET is_flagged = ?,
		     resolved_at = ?,
		     resolved_by = ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND is_flagged = ?`,
		false,
		at,
		by,
		at,
		tenantID,
		id,
		true,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
