package delivery

import (
	"github.com/orderguard/orderguard/internal/delivery/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery.ledger",
	fx.Provide(repository.Provide),
)
