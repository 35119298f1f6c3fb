package quota

import (
	"github.com/orderguard/orderguard/internal/quota/repository"
	"github.com/orderguard/orderguard/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
