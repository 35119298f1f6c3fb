package config

import "go.uber.org/fx"

// Module provides application and pipeline configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPipelineConfigHolder),
)
