package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PipelineConfig tunes the queue and worker pool without a redeploy.
type PipelineConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	RetryLimit    int           `mapstructure:"retryLimit"`
	RetryDelay    time.Duration `mapstructure:"retryDelay"`
	ExpireIn      time.Duration `mapstructure:"expireIn"`
	PollInterval  time.Duration `mapstructure:"pollInterval"`
	ReapInterval  time.Duration `mapstructure:"reapInterval"`
	TenantLockTTL time.Duration `mapstructure:"tenantLockTTL"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Concurrency:   5,
		RetryLimit:    3,
		RetryDelay:    60 * time.Second,
		ExpireIn:      15 * time.Minute,
		PollInterval:  time.Second,
		ReapInterval:  time.Minute,
		TenantLockTTL: 30 * time.Second,
	}
}

func validatePipelineConfig(cfg PipelineConfig) error {
	if cfg.Concurrency <= 0 {
		return errors.New("pipeline concurrency must be positive")
	}
	if cfg.RetryLimit < 0 {
		return errors.New("pipeline retryLimit must not be negative")
	}
	if cfg.ExpireIn <= 0 {
		return errors.New("pipeline expireIn must be positive")
	}
	return nil
}

// PipelineConfigHolder exposes the current pipeline config and hot-reloads it
// when the backing file changes.
type PipelineConfigHolder struct {
	current atomic.Value // holds PipelineConfig
}

func NewPipelineConfigHolder() (*PipelineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pipeline")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/orderguard")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORDERGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPipelineConfig()
	v.SetDefault("pipeline.concurrency", defaults.Concurrency)
	v.SetDefault("pipeline.retryLimit", defaults.RetryLimit)
	v.SetDefault("pipeline.retryDelay", defaults.RetryDelay)
	v.SetDefault("pipeline.expireIn", defaults.ExpireIn)
	v.SetDefault("pipeline.pollInterval", defaults.PollInterval)
	v.SetDefault("pipeline.reapInterval", defaults.ReapInterval)
	v.SetDefault("pipeline.tenantLockTTL", defaults.TenantLockTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PipelineConfig
	if err := v.UnmarshalKey("pipeline", &cfg); err != nil {
		return nil, err
	}
	if err := validatePipelineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PipelineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var next PipelineConfig
		if err := v.UnmarshalKey("pipeline", &next); err != nil {
			log.Printf("pipeline config reload failed: %v", err)
			return
		}
		if err := validatePipelineConfig(next); err != nil {
			log.Printf("pipeline config reload rejected: %v", err)
			return
		}
		holder.current.Store(next)
	})

	return holder, nil
}

// Current returns the active pipeline config.
func (h *PipelineConfigHolder) Current() PipelineConfig {
	if h == nil {
		return DefaultPipelineConfig()
	}
	cfg, ok := h.current.Load().(PipelineConfig)
	if !ok {
		return DefaultPipelineConfig()
	}
	return cfg
}

// NewStaticPipelineConfigHolder pins a config for tests.
func NewStaticPipelineConfigHolder(cfg PipelineConfig) *PipelineConfigHolder {
	holder := &PipelineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}
