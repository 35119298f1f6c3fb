package slack

import (
	"strings"

	"github.com/orderguard/orderguard/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if strings.TrimSpace(cfg.SlackWebhookURL) == "" {
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.SlackWebhookURL)
}
