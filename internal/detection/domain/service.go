package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
)

// Service hands out per-tenant detection settings, creating defaults on
// first access.
type Service interface {
	GetForTenant(ctx context.Context, tenantID snowflake.ID) (Settings, error)
}

type Repository interface {
	FindByTenant(ctx context.Context, tenantID snowflake.ID) (*Settings, error)
	Insert(ctx context.Context, settings *Settings) error
}
