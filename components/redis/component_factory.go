package redis

import (
	"fmt"
	"sort"
)

// ComponentFactory turns the redis config section into a Registry. An empty
// clients map is allowed; code installs factories with Use before Start.
type ComponentFactory struct{}

func NewFactory() *ComponentFactory { return &ComponentFactory{} }

func (f *ComponentFactory) Create(cfg *RegistryConfig) (*Registry, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("redis component disabled")
	}

	names := make([]string, 0, len(cfg.Clients))
	for name := range cfg.Clients {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := NewRegistry()
	for _, name := range names {
		cc := cfg.Clients[name]
		if cc == nil {
			return nil, fmt.Errorf("redis.clients.%s is empty", name)
		}
		resolved, err := cc.Resolve()
		if err != nil {
			return nil, fmt.Errorf("redis.clients.%s: %w", name, err)
		}
		if err := reg.Configure(ID(name), resolved); err != nil {
			return nil, err
		}
	}

	switch {
	case cfg.Default != "":
		if _, ok := cfg.Clients[cfg.Default]; !ok {
			return nil, fmt.Errorf("redis.default %q is not a configured client", cfg.Default)
		}
		if err := reg.SetDefault(ID(cfg.Default)); err != nil {
			return nil, err
		}
	case len(names) == 1:
		// a single client serves default lookups
		if err := reg.SetDefault(ID(names[0])); err != nil {
			return nil, err
		}
	}
	reg.SetVerifyOnBoot(cfg.VerifyOnBoot)
	return reg, nil
}
