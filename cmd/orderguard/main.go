package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	"github.com/orderguard/orderguard/internal/config"
	"github.com/orderguard/orderguard/internal/delivery"
	"github.com/orderguard/orderguard/internal/detection"
	"github.com/orderguard/orderguard/internal/enrichment"
	"github.com/orderguard/orderguard/internal/logger"
	"github.com/orderguard/orderguard/internal/migration"
	"github.com/orderguard/orderguard/internal/notification"
	"github.com/orderguard/orderguard/internal/order"
	"github.com/orderguard/orderguard/internal/providers"
	"github.com/orderguard/orderguard/internal/queue/gormqueue"
	"github.com/orderguard/orderguard/internal/quota"
	"github.com/orderguard/orderguard/internal/ratelimit"
	"github.com/orderguard/orderguard/internal/server"
	"github.com/orderguard/orderguard/internal/tagging"
	"github.com/orderguard/orderguard/internal/worker"
	"github.com/orderguard/orderguard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Domain modules
		delivery.Module,
		order.Module,
		detection.Module,
		quota.Module,

		// Pipeline
		gormqueue.Module,
		ratelimit.Module,
		providers.Module,
		notification.Module,
		tagging.Module,
		enrichment.Module,
		worker.Module,

		// HTTP surface
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
