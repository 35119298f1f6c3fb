package order

import (
	"github.com/orderguard/orderguard/internal/order/repository"
	"github.com/orderguard/orderguard/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
