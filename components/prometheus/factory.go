package prometheus

import (
	"fmt"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(c *Config) (core.Component, error) {
	if c == nil || !c.Enabled {
		return nil, fmt.Errorf("prometheus component disabled")
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	on := true
	if c.CollectGoMetrics == nil {
		c.CollectGoMetrics = &on
	}
	if c.CollectProcess == nil {
		c.CollectProcess = &on
	}
	return NewComponent(c), nil
}
