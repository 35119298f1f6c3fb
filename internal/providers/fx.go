package providers

import (
	"github.com/orderguard/orderguard/internal/providers/email"
	"github.com/orderguard/orderguard/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
)
