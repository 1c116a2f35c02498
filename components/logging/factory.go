package logging

import (
	"fmt"
	"strings"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(cfg *LoggingConfig) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("logging component is disabled")
	}
	f.setDefaults(cfg)
	if err := f.validate(cfg); err != nil {
		return nil, err
	}
	return NewLoggerComponent(cfg), nil
}

func (f *Factory) setDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if strings.EqualFold(cfg.Output, "file") {
		if cfg.File == nil {
			cfg.File = &File{}
		}
		if cfg.File.Dir == "" {
			cfg.File.Dir = "./logs"
		}
		if cfg.File.Filename == "" {
			cfg.File.Filename = "app"
		}
		if cfg.File.MaxSizeMB <= 0 {
			cfg.File.MaxSizeMB = 100
		}
	}
}

func (f *Factory) validate(cfg *LoggingConfig) error {
	if _, err := parseLevel(cfg.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Format)
	}
	if cfg.File != nil {
		if cfg.File.MaxBackups < 0 || cfg.File.MaxAgeDays < 0 {
			return fmt.Errorf("logging.file max_backups and max_age_days must be >= 0")
		}
	}
	return nil
}
