// config/loader.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
)

// Loader 配置加载器
type Loader struct {
	env        string
	configPath string
	// bizConfig: 业务方传入的指针, 用于填充 biz_config 小节
	bizConfig any
}

// NewLoader 创建配置加载器
func NewLoader(env string, configPath string) *Loader {
	if env == "" {
		env = consts.ENV_DEVELOPMENT
	}
	if configPath == "" {
		configPath = consts.DEFAULT_CONFIG_PATH
	}
	return &Loader{env: env, configPath: configPath}
}

// SetBizConfig 注入业务方自定义配置结构指针 (例如: &MyBizConfig{}). 需要在 LoadConfig 之前调用。
func (l *Loader) SetBizConfig(b any) {
	if b == nil {
		return
	}
	if reflect.TypeOf(b).Kind() != reflect.Ptr {
		panic("SetBizConfig expects a pointer, e.g. &MyBizConfig{}")
	}
	l.bizConfig = b
}

// LoadConfig reads the file, expands ${VAR} references, decodes it by
// extension and then decodes biz_config into the registered pointer.
func (l *Loader) LoadConfig() (*AppConfig, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg AppConfig
	ext := strings.ToLower(filepath.Ext(l.configPath))
	if err := unmarshal(ext, data, &cfg); err != nil {
		return nil, err
	}

	// 如果业务方提供了指针, 且文件中存在 biz_config 数据, 做二次解码
	if l.bizConfig != nil && cfg.BizConfig != nil {
		if err := l.decodeBizSection(ext, cfg.BizConfig, l.bizConfig); err != nil {
			return nil, fmt.Errorf("decode biz_config failed: %w", err)
		}
		cfg.BizConfig = l.bizConfig
	} else if l.bizConfig != nil {
		cfg.BizConfig = l.bizConfig
	}

	l.mergeEnv(&cfg)
	return &cfg, nil
}

func unmarshal(ext string, data []byte, out any) error {
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	return nil
}

// decodeBizSection re-encodes the generic subtree and decodes it into target,
// keeping the defaults already set on target.
func (l *Loader) decodeBizSection(ext string, raw any, target any) error {
	var (
		bytes []byte
		err   error
	)
	switch ext {
	case ".yaml", ".yml":
		bytes, err = yaml.Marshal(raw)
	case ".json":
		bytes, err = json.Marshal(raw)
	default:
		return fmt.Errorf("unsupported format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("re-marshal biz_config failed: %w", err)
	}
	return unmarshal(ext, bytes, target)
}

// mergeEnv fills app_info.env from the runtime environment when the file
// leaves it empty.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	if cfg.APPInfo == nil {
		return
	}
	if cfg.APPInfo.ENV == "" {
		cfg.APPInfo.ENV = l.env
	}
}
