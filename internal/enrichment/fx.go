package enrichment

import (
	"strings"

	"github.com/orderguard/orderguard/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("enrichment.client",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Client {
	if strings.TrimSpace(cfg.PlatformAPIBaseURL) == "" {
		return &NoOpClient{}
	}
	return NewPlatformClient(cfg.PlatformAPIBaseURL)
}
