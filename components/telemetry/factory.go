package telemetry

import (
	"fmt"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg *Config) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("telemetry component disabled")
	}
	cfg.applyDefaults()
	switch cfg.Exporter {
	case ExporterStdout, ExporterOTLP:
	default:
		return nil, fmt.Errorf("telemetry.exporter must be stdout or otlp, got %q", cfg.Exporter)
	}
	if cfg.Exporter == ExporterOTLP && (cfg.OTLP == nil || cfg.OTLP.Endpoint == "") {
		return nil, fmt.Errorf("telemetry.otlp.endpoint is required for the otlp exporter")
	}
	return NewComponent(cfg), nil
}
