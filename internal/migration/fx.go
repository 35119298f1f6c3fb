package migration

import (
	"github.com/orderguard/orderguard/internal/config"
	deliverydomain "github.com/orderguard/orderguard/internal/delivery/domain"
	detectiondomain "github.com/orderguard/orderguard/internal/detection/domain"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/internal/queue"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations target postgres. Other dialects (mysql,
		// local sqlite) derive the schema from the models.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&orderdomain.Order{},
				&deliverydomain.WebhookDelivery{},
				&detectiondomain.Settings{},
				&quotadomain.Subscription{},
				&queue.Job{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
