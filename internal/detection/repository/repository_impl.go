package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	detectiondomain "github.com/orderguard/orderguard/internal/detection/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) detectiondomain.Repository {
	return &repo{db: db}
}

func (r *repo) FindByTenant(ctx context.Context, tenantID snowflake.ID) (*detectiondomain.Settings, error) {
	var settings detectiondomain.Settings
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *repo) Insert(ctx context.Context, settings *detectiondomain.Settings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}
