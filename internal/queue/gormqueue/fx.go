package gormqueue

import (
	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	"github.com/orderguard/orderguard/internal/queue"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func provideGorm(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, clk clock.Clock) *Queue {
	return New(db, log, genID, clk)
}

// Module wires the durable queue. gormqueue.Queue satisfies both Queue and
// Inspector; the interfaces are bound separately so consumers only take what
// they need.
var Module = fx.Module("queue",
	fx.Provide(provideGorm),
	fx.Provide(func(q *Queue) queue.Queue { return q }),
	fx.Provide(func(q *Queue) queue.Inspector { return q }),
)
