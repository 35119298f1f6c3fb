package tagging

import (
	"strings"

	"github.com/orderguard/orderguard/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("tagging.service",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Service {
	if strings.TrimSpace(cfg.PlatformAPIBaseURL) == "" {
		return &NoOpService{}
	}
	return NewPlatformService(cfg.PlatformAPIBaseURL)
}
