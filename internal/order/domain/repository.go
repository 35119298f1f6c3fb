package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// Insert persists the order. It returns false without error when another
	// worker already persisted the same (tenant, source order) pair.
	Insert(ctx context.Context, order *Order) (bool, error)
	FindByID(ctx context.Context, tenantID, id snowflake.ID) (*Order, error)
	FindBySourceOrderID(ctx context.Context, tenantID snowflake.ID, sourceOrderID string) (*Order, error)
	// FindCandidates returns orders in the window whose email or normalized
	// phone matches, de-duplicated, most recent first.
	FindCandidates(ctx context.Context, tenantID snowflake.ID, email, normalizedPhone string, since time.Time) ([]Order, error)
	List(ctx context.Context, tenantID snowflake.ID, flaggedOnly bool, limit int) ([]Order, error)
	// MarkResolved flips a flagged order to resolved. It returns false when
	// the order was not in the flagged state.
	MarkResolved(ctx context.Context, tenantID, id snowflake.ID, by ResolvedBy, at time.Time) (bool, error)
}
