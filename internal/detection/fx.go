package detection

import (
	"github.com/orderguard/orderguard/internal/detection/repository"
	"github.com/orderguard/orderguard/internal/detection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("detection.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
