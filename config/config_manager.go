package config

import (
	"fmt"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
)

// ConfigManager reads one config file for one environment and keeps the
// validated result.
type ConfigManager struct {
	env    string
	path   string
	loader *Loader
	cfg    *AppConfig
}

// ManagerOption adjusts a ConfigManager before its first LoadConfig.
type ManagerOption func(*ConfigManager)

// WithBizConfig decodes the biz_config section into biz, which must be a
// pointer.
func WithBizConfig(biz any) ManagerOption {
	return func(cm *ConfigManager) { cm.loader.SetBizConfig(biz) }
}

func NewConfigManager(env, configPath string, opts ...ManagerOption) *ConfigManager {
	cm := &ConfigManager{
		env:    env,
		path:   configPath,
		loader: NewLoader(env, configPath),
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// LoadConfig checks the path and environment, decodes the file and
// validates it. The previous result is kept when any step fails.
func (cm *ConfigManager) LoadConfig() error {
	v := NewValidator()
	if err := v.validateConfigFilePath(cm.env, cm.path); err != nil {
		return err
	}
	cfg, err := cm.loader.LoadConfig()
	if err != nil {
		return err
	}
	if err := v.ValidateAppConfig(cfg); err != nil {
		return fmt.Errorf("%s: %w", cm.path, err)
	}
	cm.cfg = cfg
	return nil
}

func (cm *ConfigManager) GetConfig() *AppConfig { return cm.cfg }

// Path is the config file this manager reads.
func (cm *ConfigManager) Path() string { return cm.path }

// RedisClients returns the configured client sections, or nil before a
// successful LoadConfig.
func (cm *ConfigManager) RedisClients() map[string]*redis.ClientConfig {
	if cm.cfg == nil || cm.cfg.Redis == nil {
		return nil
	}
	return cm.cfg.Redis.Clients
}

// BizConfig returns the decoded biz_config value.
func (cm *ConfigManager) BizConfig() any {
	if cm == nil || cm.cfg == nil {
		return nil
	}
	return cm.cfg.BizConfig
}
