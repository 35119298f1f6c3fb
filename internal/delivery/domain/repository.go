package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidDeliveryID = errors.New("invalid_delivery_id")
)

// Ledger answers "have I started processing this exact delivery before?".
type Ledger interface {
	// TryRecord atomically inserts the (tenant, delivery) pair. It returns
	// true when this is the first time the delivery was recorded and false
	// when a prior attempt already claimed it. A false return is not an
	// error; callers treat it as a no-op success.
	TryRecord(ctx context.Context, tenantID snowflake.ID, deliveryID, topic string) (bool, error)
}
